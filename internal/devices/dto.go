package devices

import (
	"time"

	dbtypes "github.com/oskim/tapflow-backend/pkg/db/types"
)

// ProvisionInput registers a new dispenser (or re-fetches its credentials).
type ProvisionInput struct {
	DispenserID string  `json:"dispenser_id" validate:"required"`
	Name        *string `json:"name"`
	Location    *string `json:"location"`
}

// ProvisionResult is the only place a device secret ever leaves the service.
type ProvisionResult struct {
	DispenserID  string `json:"dispenser_id"`
	DeviceSecret string `json:"device_secret"`
	NVSVersion   int64  `json:"nvs_version"`
}

// PatchInput updates dispenser metadata via typed optional fields.
type PatchInput struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
}

// NVSWriteInput carries a full settings replacement. Device writes must also
// supply their view of the current version; admin writes may omit it since
// the server assigns a fresh version regardless.
type NVSWriteInput struct {
	Settings dbtypes.SettingsMap `json:"nvs_settings" validate:"required"`
	Version  *int64              `json:"nvs_version"`
}

// NVSView is the config read projection for both device and admin paths.
type NVSView struct {
	DispenserID string              `json:"dispenser_id"`
	Name        *string             `json:"name,omitempty"`
	Location    *string             `json:"location,omitempty"`
	NVSVersion  int64               `json:"nvs_version"`
	NVSSettings dbtypes.SettingsMap `json:"nvs_settings"`
}

// StatusView is the device status projection.
type StatusView struct {
	DispenserID      string     `json:"dispenser_id"`
	Online           bool       `json:"online"`
	LastSeen         *time.Time `json:"last_seen,omitempty"`
	PressurePSI      *float64   `json:"pressure_psi,omitempty"`
	TemperatureC     *float64   `json:"temperature_c,omitempty"`
	TotalDispensedML int64      `json:"total_dispensed_ml"`
	NVSVersion       int64      `json:"nvs_version"`
}
