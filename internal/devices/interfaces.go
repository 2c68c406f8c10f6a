package devices

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/pkg/db/models"
	dbtypes "github.com/oskim/tapflow-backend/pkg/db/types"
)

// Repository defines persistence operations for dispenser records. It also
// satisfies the credential store the device-auth middleware reads from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindDispenser(ctx context.Context, dispenserID string) (*models.Dispenser, error)
	ListDispensers(ctx context.Context, limit int) ([]models.Dispenser, error)
	CreateDispenser(ctx context.Context, dispenser *models.Dispenser) (*models.Dispenser, error)
	UpdateDispenser(ctx context.Context, dispenserID string, updates map[string]any) error

	// UpdateNVSGuarded writes settings+version only while nvs_version still
	// equals expectedVersion. Returns false when another writer won the race.
	UpdateNVSGuarded(ctx context.Context, dispenserID string, expectedVersion int64, settings dbtypes.SettingsMap, newVersion int64) (bool, error)

	// ApplyTelemetry updates the snapshot columns and bumps the lifetime
	// dispensed counter.
	ApplyTelemetry(ctx context.Context, dispenserID string, pressurePSI, temperatureC *float64, addVolumeML int) error

	DeviceSecret(ctx context.Context, dispenserID string) (string, bool, error)
	TouchLastSeen(ctx context.Context, dispenserID string, at time.Time) error
}
