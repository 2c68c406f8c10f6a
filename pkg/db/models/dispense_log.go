package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/pkg/enums"
)

// DispenseLog is the append-only audit record of one physical pour attempt.
// Never mutated after creation.
type DispenseLog struct {
	ID          uuid.UUID         `gorm:"column:log_id;type:uuid;default:gen_random_uuid();primaryKey"`
	DispenserID string            `gorm:"column:dispenser_id;type:text;not null;index"`
	OrderID     *uuid.UUID        `gorm:"column:order_id;type:uuid;index"`
	VenueID     *uuid.UUID        `gorm:"column:venue_id;type:uuid"`
	TriggerType enums.TriggerType `gorm:"column:trigger_type;type:text;not null;default:'online_order'"`

	VolumeML        *int `gorm:"column:volume_ml"`
	DurationMS      *int `gorm:"column:duration_ms"`
	FlowmeterPulses *int `gorm:"column:flowmeter_pulses"`

	PressurePSI  *float64 `gorm:"column:pressure_psi"`
	TemperatureC *float64 `gorm:"column:temperature_c"`
	KegRemaining *float64 `gorm:"column:keg_remaining_pct"`

	Success      bool    `gorm:"column:success;not null"`
	ErrorCode    *string `gorm:"column:error_code"`
	ErrorMessage *string `gorm:"column:error_message"`

	ReportedAt time.Time `gorm:"column:reported_at;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
