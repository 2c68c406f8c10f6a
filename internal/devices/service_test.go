package devices

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/pkg/config"
	"github.com/oskim/tapflow-backend/pkg/db/models"
	dbtypes "github.com/oskim/tapflow-backend/pkg/db/types"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
)

type stubDevicesRepo struct {
	dispenser *models.Dispenser
	guardFail int
}

func (s *stubDevicesRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubDevicesRepo) FindDispenser(ctx context.Context, dispenserID string) (*models.Dispenser, error) {
	if s.dispenser == nil || s.dispenser.ID != dispenserID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.dispenser
	return &copied, nil
}

func (s *stubDevicesRepo) ListDispensers(ctx context.Context, limit int) ([]models.Dispenser, error) {
	if s.dispenser == nil {
		return nil, nil
	}
	return []models.Dispenser{*s.dispenser}, nil
}

func (s *stubDevicesRepo) CreateDispenser(ctx context.Context, dispenser *models.Dispenser) (*models.Dispenser, error) {
	s.dispenser = dispenser
	return dispenser, nil
}

func (s *stubDevicesRepo) UpdateDispenser(ctx context.Context, dispenserID string, updates map[string]any) error {
	if s.dispenser == nil || s.dispenser.ID != dispenserID {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["name"].(string); ok {
		s.dispenser.Name = &v
	}
	if v, ok := updates["location"].(string); ok {
		s.dispenser.Location = &v
	}
	return nil
}

func (s *stubDevicesRepo) UpdateNVSGuarded(ctx context.Context, dispenserID string, expectedVersion int64, settings dbtypes.SettingsMap, newVersion int64) (bool, error) {
	if s.guardFail > 0 {
		s.guardFail--
		return false, nil
	}
	if s.dispenser == nil || s.dispenser.ID != dispenserID || s.dispenser.NVSVersion != expectedVersion {
		return false, nil
	}
	s.dispenser.NVSSettings = settings
	s.dispenser.NVSVersion = newVersion
	return true, nil
}

func (s *stubDevicesRepo) ApplyTelemetry(ctx context.Context, dispenserID string, pressurePSI, temperatureC *float64, addVolumeML int) error {
	if s.dispenser == nil || s.dispenser.ID != dispenserID {
		return gorm.ErrRecordNotFound
	}
	if pressurePSI != nil {
		s.dispenser.PressurePSI = pressurePSI
	}
	if temperatureC != nil {
		s.dispenser.TemperatureC = temperatureC
	}
	s.dispenser.TotalDispensedML += int64(addVolumeML)
	return nil
}

func (s *stubDevicesRepo) DeviceSecret(ctx context.Context, dispenserID string) (string, bool, error) {
	if s.dispenser == nil || s.dispenser.ID != dispenserID {
		return "", false, nil
	}
	return s.dispenser.DeviceSecret, true, nil
}

func (s *stubDevicesRepo) TouchLastSeen(ctx context.Context, dispenserID string, at time.Time) error {
	if s.dispenser == nil || s.dispenser.ID != dispenserID {
		return gorm.ErrRecordNotFound
	}
	s.dispenser.LastSeen = &at
	return nil
}

func deviceConfig() config.DeviceConfig {
	return config.DeviceConfig{
		SignatureSkew:    5 * time.Minute,
		SecretBytes:      32,
		OnlineWindow:     5 * time.Minute,
		DefaultMaxPourML: 500,
	}
}

func newDeviceService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, deviceConfig())
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestProvisionGeneratesSecretAndDefaults(t *testing.T) {
	repo := &stubDevicesRepo{}
	svc := newDeviceService(t, repo)

	result, created, err := svc.Provision(context.Background(), ProvisionInput{DispenserID: "TAP_001"})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !created {
		t.Fatal("expected a new record")
	}
	if len(result.DeviceSecret) != 64 {
		t.Fatalf("unexpected secret length %d", len(result.DeviceSecret))
	}
	if result.NVSVersion != 0 {
		t.Fatalf("unexpected version %d", result.NVSVersion)
	}
	if repo.dispenser.NVSSettings["st1_duration"] != 3000 {
		t.Fatalf("missing default settings %+v", repo.dispenser.NVSSettings)
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	repo := &stubDevicesRepo{}
	svc := newDeviceService(t, repo)

	first, _, err := svc.Provision(context.Background(), ProvisionInput{DispenserID: "TAP_001"})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	second, created, err := svc.Provision(context.Background(), ProvisionInput{DispenserID: "TAP_001"})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if created {
		t.Fatal("expected existing record")
	}
	if second.DeviceSecret != first.DeviceSecret {
		t.Fatal("secret must be stable across provisioning calls")
	}
}

func TestDeviceWriteNVSStaleVersionConflicts(t *testing.T) {
	repo := &stubDevicesRepo{
		dispenser: &models.Dispenser{
			ID:          "TAP_001",
			NVSVersion:  10,
			NVSSettings: dbtypes.SettingsMap{"st1_duration": 3000},
		},
	}
	svc := newDeviceService(t, repo)

	supplied := int64(5)
	_, err := svc.DeviceWriteNVS(context.Background(), "TAP_001", NVSWriteInput{
		Settings: dbtypes.SettingsMap{"st1_duration": 9999},
		Version:  &supplied,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeVersionConflict {
		t.Fatalf("unexpected error %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["server_version"] != int64(10) {
		t.Fatalf("unexpected details %+v", typed.Details())
	}
	if repo.dispenser.NVSSettings["st1_duration"] != 3000 {
		t.Fatalf("settings must be unchanged, got %+v", repo.dispenser.NVSSettings)
	}
}

func TestDeviceWriteNVSWinsAndBumpsVersion(t *testing.T) {
	repo := &stubDevicesRepo{
		dispenser: &models.Dispenser{
			ID:          "TAP_001",
			NVSVersion:  10,
			NVSSettings: dbtypes.SettingsMap{"st1_duration": 3000},
		},
	}
	svc := newDeviceService(t, repo)

	supplied := int64(10)
	view, err := svc.DeviceWriteNVS(context.Background(), "TAP_001", NVSWriteInput{
		Settings: dbtypes.SettingsMap{"st1_duration": 4500},
		Version:  &supplied,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if view.NVSVersion <= 10 {
		t.Fatalf("version must strictly increase, got %d", view.NVSVersion)
	}
	if repo.dispenser.NVSSettings["st1_duration"] != 4500 {
		t.Fatalf("settings not applied %+v", repo.dispenser.NVSSettings)
	}
}

func TestAdminWriteNVSAlwaysWins(t *testing.T) {
	// Stored version far in the future forces the stored+1 clamp.
	future := time.Now().Add(24 * time.Hour).Unix()
	repo := &stubDevicesRepo{
		dispenser: &models.Dispenser{
			ID:          "TAP_001",
			NVSVersion:  future,
			NVSSettings: dbtypes.SettingsMap{"st1_duration": 3000},
		},
	}
	svc := newDeviceService(t, repo)

	// Admin writes carry no version; the server assigns one.
	view, err := svc.AdminWriteNVS(context.Background(), "TAP_001", NVSWriteInput{
		Settings: dbtypes.SettingsMap{"st1_duration": 7000},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if view.NVSVersion != future+1 {
		t.Fatalf("expected version %d got %d", future+1, view.NVSVersion)
	}
	if repo.dispenser.NVSSettings["st1_duration"] != 7000 {
		t.Fatalf("settings not applied %+v", repo.dispenser.NVSSettings)
	}
}

func TestDeviceWriteNVSRequiresVersion(t *testing.T) {
	repo := &stubDevicesRepo{
		dispenser: &models.Dispenser{
			ID:          "TAP_001",
			NVSVersion:  10,
			NVSSettings: dbtypes.SettingsMap{"st1_duration": 3000},
		},
	}
	svc := newDeviceService(t, repo)

	_, err := svc.DeviceWriteNVS(context.Background(), "TAP_001", NVSWriteInput{
		Settings: dbtypes.SettingsMap{"st1_duration": 9999},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
	if repo.dispenser.NVSSettings["st1_duration"] != 3000 {
		t.Fatalf("settings must be unchanged, got %+v", repo.dispenser.NVSSettings)
	}
}

func TestAdminWriteNVSRetriesGuardRace(t *testing.T) {
	repo := &stubDevicesRepo{
		dispenser: &models.Dispenser{
			ID:          "TAP_001",
			NVSVersion:  3,
			NVSSettings: dbtypes.SettingsMap{},
		},
		guardFail: 2,
	}
	svc := newDeviceService(t, repo)

	_, err := svc.AdminWriteNVS(context.Background(), "TAP_001", NVSWriteInput{
		Settings: dbtypes.SettingsMap{"online_mode": true},
	})
	if err != nil {
		t.Fatalf("expected retry to succeed got %v", err)
	}
	if repo.dispenser.NVSSettings["online_mode"] != true {
		t.Fatalf("settings not applied %+v", repo.dispenser.NVSSettings)
	}
}

func TestStatusOnlineWindow(t *testing.T) {
	recent := time.Now().Add(-time.Minute)
	repo := &stubDevicesRepo{
		dispenser: &models.Dispenser{ID: "TAP_001", LastSeen: &recent},
	}
	svc := newDeviceService(t, repo)

	status, err := svc.Status(context.Background(), "TAP_001")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !status.Online {
		t.Fatal("expected online within window")
	}

	stale := time.Now().Add(-time.Hour)
	repo.dispenser.LastSeen = &stale
	status, err = svc.Status(context.Background(), "TAP_001")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if status.Online {
		t.Fatal("expected offline beyond window")
	}
}

func TestPatchRejectsEmptyUpdate(t *testing.T) {
	repo := &stubDevicesRepo{
		dispenser: &models.Dispenser{ID: "TAP_001"},
	}
	svc := newDeviceService(t, repo)

	_, err := svc.Patch(context.Background(), "TAP_001", PatchInput{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}
