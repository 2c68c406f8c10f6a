package devices

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/internal/devices/nvsdefaults"
	"github.com/oskim/tapflow-backend/pkg/config"
	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/deviceauth"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
)

// Service manages dispenser provisioning, metadata and NVS config sync.
type Service interface {
	Provision(ctx context.Context, input ProvisionInput) (*ProvisionResult, bool, error)
	List(ctx context.Context, limit int) ([]models.Dispenser, error)
	Get(ctx context.Context, dispenserID string) (*models.Dispenser, error)
	Patch(ctx context.Context, dispenserID string, input PatchInput) (*models.Dispenser, error)

	ReadNVS(ctx context.Context, dispenserID string) (*NVSView, error)
	NVSVersion(ctx context.Context, dispenserID string) (int64, error)
	// DeviceWriteNVS applies a device-originated write; a stored version
	// strictly greater than the supplied one loses with VersionConflict.
	DeviceWriteNVS(ctx context.Context, dispenserID string, input NVSWriteInput) (*NVSView, error)
	// AdminWriteNVS always wins and assigns a fresh strictly-increasing version.
	AdminWriteNVS(ctx context.Context, dispenserID string, input NVSWriteInput) (*NVSView, error)

	Status(ctx context.Context, dispenserID string) (*StatusView, error)
}

type service struct {
	repo Repository
	cfg  config.DeviceConfig
	now  func() time.Time
}

// NewService builds the dispenser service.
func NewService(repo Repository, cfg config.DeviceConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	return &service{repo: repo, cfg: cfg, now: time.Now}, nil
}

func (s *service) Provision(ctx context.Context, input ProvisionInput) (*ProvisionResult, bool, error) {
	existing, err := s.repo.FindDispenser(ctx, input.DispenserID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispenser")
	}
	if existing != nil {
		return &ProvisionResult{
			DispenserID:  existing.ID,
			DeviceSecret: existing.DeviceSecret,
			NVSVersion:   existing.NVSVersion,
		}, false, nil
	}

	secret, err := deviceauth.GenerateSecret(s.cfg.SecretBytes)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate device secret")
	}

	dispenser := &models.Dispenser{
		ID:           input.DispenserID,
		Name:         input.Name,
		Location:     input.Location,
		DeviceSecret: secret,
		NVSSettings:  nvsdefaults.Settings(),
		NVSVersion:   0,
	}
	if _, err := s.repo.CreateDispenser(ctx, dispenser); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispenser")
	}
	return &ProvisionResult{
		DispenserID:  dispenser.ID,
		DeviceSecret: secret,
		NVSVersion:   0,
	}, true, nil
}

func (s *service) List(ctx context.Context, limit int) ([]models.Dispenser, error) {
	dispensers, err := s.repo.ListDispensers(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dispensers")
	}
	return dispensers, nil
}

func (s *service) Get(ctx context.Context, dispenserID string) (*models.Dispenser, error) {
	return s.loadDispenser(ctx, dispenserID)
}

func (s *service) Patch(ctx context.Context, dispenserID string, input PatchInput) (*models.Dispenser, error) {
	if _, err := s.loadDispenser(ctx, dispenserID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Location != nil {
		updates["location"] = *input.Location
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.repo.UpdateDispenser(ctx, dispenserID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update dispenser")
	}
	return s.loadDispenser(ctx, dispenserID)
}

func (s *service) ReadNVS(ctx context.Context, dispenserID string) (*NVSView, error) {
	dispenser, err := s.loadDispenser(ctx, dispenserID)
	if err != nil {
		return nil, err
	}
	return nvsView(dispenser), nil
}

func (s *service) NVSVersion(ctx context.Context, dispenserID string) (int64, error) {
	dispenser, err := s.loadDispenser(ctx, dispenserID)
	if err != nil {
		return 0, err
	}
	return dispenser.NVSVersion, nil
}

func (s *service) DeviceWriteNVS(ctx context.Context, dispenserID string, input NVSWriteInput) (*NVSView, error) {
	if input.Version == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nvs_version required")
	}

	dispenser, err := s.loadDispenser(ctx, dispenserID)
	if err != nil {
		return nil, err
	}
	if dispenser.NVSVersion > *input.Version {
		return nil, versionConflict(dispenser.NVSVersion)
	}

	newVersion := s.nextVersion(dispenser.NVSVersion)
	updated, err := s.repo.UpdateNVSGuarded(ctx, dispenserID, dispenser.NVSVersion, input.Settings, newVersion)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write nvs settings")
	}
	if !updated {
		// Lost the race; report whatever is stored now.
		current, loadErr := s.loadDispenser(ctx, dispenserID)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, versionConflict(current.NVSVersion)
	}

	dispenser.NVSSettings = input.Settings
	dispenser.NVSVersion = newVersion
	return nvsView(dispenser), nil
}

func (s *service) AdminWriteNVS(ctx context.Context, dispenserID string, input NVSWriteInput) (*NVSView, error) {
	for attempt := 0; attempt < 3; attempt++ {
		dispenser, err := s.loadDispenser(ctx, dispenserID)
		if err != nil {
			return nil, err
		}

		newVersion := s.nextVersion(dispenser.NVSVersion)
		updated, err := s.repo.UpdateNVSGuarded(ctx, dispenserID, dispenser.NVSVersion, input.Settings, newVersion)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write nvs settings")
		}
		if updated {
			dispenser.NVSSettings = input.Settings
			dispenser.NVSVersion = newVersion
			return nvsView(dispenser), nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "nvs write contention")
}

func (s *service) Status(ctx context.Context, dispenserID string) (*StatusView, error) {
	dispenser, err := s.loadDispenser(ctx, dispenserID)
	if err != nil {
		return nil, err
	}

	online := false
	if dispenser.LastSeen != nil {
		online = s.now().Sub(*dispenser.LastSeen) < s.cfg.OnlineWindow
	}
	return &StatusView{
		DispenserID:      dispenser.ID,
		Online:           online,
		LastSeen:         dispenser.LastSeen,
		PressurePSI:      dispenser.PressurePSI,
		TemperatureC:     dispenser.TemperatureC,
		TotalDispensedML: dispenser.TotalDispensedML,
		NVSVersion:       dispenser.NVSVersion,
	}, nil
}

func (s *service) loadDispenser(ctx context.Context, dispenserID string) (*models.Dispenser, error) {
	dispenser, err := s.repo.FindDispenser(ctx, dispenserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispenser not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispenser")
	}
	return dispenser, nil
}

// nextVersion assigns current unix seconds, clamped so versions strictly
// increase even when the clock lags the stored value.
func (s *service) nextVersion(stored int64) int64 {
	version := s.now().Unix()
	if version <= stored {
		version = stored + 1
	}
	return version
}

func versionConflict(serverVersion int64) error {
	return pkgerrors.New(pkgerrors.CodeVersionConflict, "stored nvs settings are newer").
		WithDetails(map[string]any{"server_version": serverVersion})
}

func nvsView(dispenser *models.Dispenser) *NVSView {
	return &NVSView{
		DispenserID: dispenser.ID,
		Name:        dispenser.Name,
		Location:    dispenser.Location,
		NVSVersion:  dispenser.NVSVersion,
		NVSSettings: dispenser.NVSSettings,
	}
}
