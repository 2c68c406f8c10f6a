package models

import (
	"time"

	"github.com/google/uuid"
)

// Venue is a physical location that hosts dispensers.
type Venue struct {
	ID             uuid.UUID  `gorm:"column:venue_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string     `gorm:"column:name;not null"`
	Address        *string    `gorm:"column:address"`
	OwnerID        *uuid.UUID `gorm:"column:owner_id;type:uuid;index"`
	BusinessNumber *string    `gorm:"column:business_number"`
	QRCodeData     *string    `gorm:"column:qr_code_data"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
