package catalog

import (
	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/pkg/enums"
)

// Actor identifies the admin performing a catalog operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// BeerView is the public projection of a beer on tap.
type BeerView struct {
	BeerID      uuid.UUID `json:"beer_id"`
	Name        string    `json:"name"`
	Brand       *string   `json:"brand,omitempty"`
	Style       *string   `json:"style,omitempty"`
	ABV         *float64  `json:"abv,omitempty"`
	Description *string   `json:"description,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
}

// TapView is one sellable tap on the venue menu.
type TapView struct {
	DispenserID         string   `json:"dispenser_id"`
	DispenserNumber     int      `json:"dispenser_number"`
	PositionDescription *string  `json:"position_description,omitempty"`
	Price               int      `json:"price"`
	VolumeML            int      `json:"volume_ml"`
	Beer                BeerView `json:"beer"`
}

// VenueMenu is the customer-facing venue listing.
type VenueMenu struct {
	VenueID uuid.UUID `json:"venue_id"`
	Name    string    `json:"name"`
	Address *string   `json:"address,omitempty"`
	Taps    []TapView `json:"taps"`
}

type CreateVenueInput struct {
	Name           string     `json:"name" validate:"required"`
	Address        *string    `json:"address"`
	OwnerID        *uuid.UUID `json:"owner_id"`
	BusinessNumber *string    `json:"business_number"`
	QRCodeData     *string    `json:"qr_code_data"`
}

type UpdateVenueInput struct {
	Name           *string    `json:"name"`
	Address        *string    `json:"address"`
	OwnerID        *uuid.UUID `json:"owner_id"`
	BusinessNumber *string    `json:"business_number"`
	QRCodeData     *string    `json:"qr_code_data"`
	IsActive       *bool      `json:"is_active"`
}

type CreateBeerInput struct {
	Name            string   `json:"name" validate:"required"`
	Brand           *string  `json:"brand"`
	Style           *string  `json:"style"`
	ABV             *float64 `json:"abv"`
	Description     *string  `json:"description"`
	ImageURL        *string  `json:"image_url"`
	DefaultPrice    int      `json:"default_price" validate:"gte=0"`
	DefaultVolumeML int      `json:"default_volume_ml" validate:"gte=0"`
}

type UpdateBeerInput struct {
	Name            *string  `json:"name"`
	Brand           *string  `json:"brand"`
	Style           *string  `json:"style"`
	ABV             *float64 `json:"abv"`
	Description     *string  `json:"description"`
	ImageURL        *string  `json:"image_url"`
	DefaultPrice    *int     `json:"default_price" validate:"omitempty,gte=0"`
	DefaultVolumeML *int     `json:"default_volume_ml" validate:"omitempty,gte=0"`
	IsActive        *bool    `json:"is_active"`
}

// AssignTapInput creates or replaces a venue-dispenser mapping.
type AssignTapInput struct {
	VenueID             uuid.UUID  `json:"venue_id" validate:"required"`
	DispenserID         string     `json:"dispenser_id" validate:"required"`
	BeerID              *uuid.UUID `json:"beer_id"`
	DispenserNumber     int        `json:"dispenser_number" validate:"gte=1"`
	PositionDescription *string    `json:"position_description"`
	Price               int        `json:"price" validate:"gte=0"`
	VolumeML            int        `json:"volume_ml" validate:"gte=0"`
	IsActive            *bool      `json:"is_active"`
}
