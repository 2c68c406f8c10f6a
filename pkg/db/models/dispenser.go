package models

import (
	"time"

	dbtypes "github.com/oskim/tapflow-backend/pkg/db/types"
)

// Dispenser is one provisioned ESP32 device. DeviceSecret never leaves the
// service boundary.
type Dispenser struct {
	ID           string `gorm:"column:dispenser_id;type:text;primaryKey"`
	Name         *string
	Location     *string
	DeviceSecret string `gorm:"column:device_secret;not null;default:''" json:"-"`

	NVSSettings dbtypes.SettingsMap `gorm:"column:nvs_settings;type:jsonb;serializer:json"`
	NVSVersion  int64               `gorm:"column:nvs_version;not null;default:0"`

	LastSeen *time.Time `gorm:"column:last_seen"`

	PressurePSI      *float64 `gorm:"column:pressure_psi"`
	TemperatureC     *float64 `gorm:"column:temperature_c"`
	TotalDispensedML int64    `gorm:"column:total_dispensed_ml;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
