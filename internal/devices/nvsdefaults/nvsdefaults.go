// Package nvsdefaults holds the factory NVS settings flashed onto a newly
// provisioned dispenser.
package nvsdefaults

import (
	dbtypes "github.com/oskim/tapflow-backend/pkg/db/types"
)

// Settings returns a fresh copy of the default NVS map. Durations are in
// milliseconds, servo positions in degrees, pressure in PSI.
func Settings() dbtypes.SettingsMap {
	return dbtypes.SettingsMap{
		"st0_duration":      500,
		"st1_duration":      3000,
		"st2_duration":      5000,
		"st3_duration":      2000,
		"tasting_volume":    100,
		"servo_open":        90,
		"servo_closed":      0,
		"co2_pressure":      12.5,
		"co2_purge_ms":      300,
		"flow_ml_per_pulse": 2.5,
		"online_mode":       false,
	}
}
