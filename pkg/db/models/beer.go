package models

import (
	"time"

	"github.com/google/uuid"
)

// Beer is a catalog entry; per-tap price/volume overrides live on the
// venue-dispenser mapping.
type Beer struct {
	ID              uuid.UUID `gorm:"column:beer_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string    `gorm:"column:name;not null"`
	Brand           *string   `gorm:"column:brand"`
	Style           *string   `gorm:"column:style"`
	ABV             *float64  `gorm:"column:abv"`
	Description     *string   `gorm:"column:description"`
	ImageURL        *string   `gorm:"column:image_url"`
	DefaultPrice    int       `gorm:"column:default_price;not null;default:0"`
	DefaultVolumeML int       `gorm:"column:default_volume_ml;not null;default:0"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
