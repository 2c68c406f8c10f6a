package devices

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/pkg/db/models"
	dbtypes "github.com/oskim/tapflow-backend/pkg/db/types"
	"github.com/oskim/tapflow-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a dispensers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindDispenser(ctx context.Context, dispenserID string) (*models.Dispenser, error) {
	var dispenser models.Dispenser
	err := r.db.WithContext(ctx).
		Where("dispenser_id = ?", dispenserID).
		First(&dispenser).Error
	if err != nil {
		return nil, err
	}
	return &dispenser, nil
}

func (r *repository) ListDispensers(ctx context.Context, limit int) ([]models.Dispenser, error) {
	var dispensers []models.Dispenser
	err := r.db.WithContext(ctx).
		Order("dispenser_id ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&dispensers).Error
	if err != nil {
		return nil, err
	}
	return dispensers, nil
}

func (r *repository) CreateDispenser(ctx context.Context, dispenser *models.Dispenser) (*models.Dispenser, error) {
	if err := r.db.WithContext(ctx).Create(dispenser).Error; err != nil {
		return nil, err
	}
	return dispenser, nil
}

func (r *repository) UpdateDispenser(ctx context.Context, dispenserID string, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispenser{}).
		Where("dispenser_id = ?", dispenserID).
		Updates(updates).Error
}

func (r *repository) UpdateNVSGuarded(ctx context.Context, dispenserID string, expectedVersion int64, settings dbtypes.SettingsMap, newVersion int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Dispenser{}).
		Where("dispenser_id = ? AND nvs_version = ?", dispenserID, expectedVersion).
		Updates(map[string]any{
			"nvs_settings": settings,
			"nvs_version":  newVersion,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ApplyTelemetry(ctx context.Context, dispenserID string, pressurePSI, temperatureC *float64, addVolumeML int) error {
	updates := map[string]any{}
	if pressurePSI != nil {
		updates["pressure_psi"] = *pressurePSI
	}
	if temperatureC != nil {
		updates["temperature_c"] = *temperatureC
	}
	if addVolumeML > 0 {
		updates["total_dispensed_ml"] = gorm.Expr("total_dispensed_ml + ?", addVolumeML)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Dispenser{}).
		Where("dispenser_id = ?", dispenserID).
		Updates(updates).Error
}

func (r *repository) DeviceSecret(ctx context.Context, dispenserID string) (string, bool, error) {
	var dispenser models.Dispenser
	err := r.db.WithContext(ctx).
		Select("device_secret").
		Where("dispenser_id = ?", dispenserID).
		First(&dispenser).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return dispenser.DeviceSecret, true, nil
}

func (r *repository) TouchLastSeen(ctx context.Context, dispenserID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispenser{}).
		Where("dispenser_id = ?", dispenserID).
		Update("last_seen", at).Error
}
