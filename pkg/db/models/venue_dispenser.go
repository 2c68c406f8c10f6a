package models

import (
	"time"

	"github.com/google/uuid"
)

// VenueDispenser maps a physical dispenser to a venue tap, carrying the
// sellable price/volume for the beer currently on that tap.
type VenueDispenser struct {
	VenueID             uuid.UUID  `gorm:"column:venue_id;type:uuid;not null;primaryKey"`
	DispenserID         string     `gorm:"column:dispenser_id;type:text;not null;primaryKey"`
	BeerID              *uuid.UUID `gorm:"column:beer_id;type:uuid"`
	DispenserNumber     int        `gorm:"column:dispenser_number;not null"`
	PositionDescription *string    `gorm:"column:position_description"`
	Price               int        `gorm:"column:price;not null;default:0"`
	VolumeML            int        `gorm:"column:volume_ml;not null;default:0"`
	IsActive            bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Beer *Beer `gorm:"foreignKey:BeerID"`
}
