package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/pkg/enums"
)

// Order is one customer dispense order. Rows are never deleted; terminal
// statuses close the lifecycle.
type Order struct {
	ID          uuid.UUID  `gorm:"column:order_id;type:uuid;default:gen_random_uuid();primaryKey"`
	VenueID     uuid.UUID  `gorm:"column:venue_id;type:uuid;not null;index"`
	DispenserID string     `gorm:"column:dispenser_id;type:text;not null;index"`
	BeerID      uuid.UUID  `gorm:"column:beer_id;type:uuid;not null"`
	CustomerID  *uuid.UUID `gorm:"column:customer_id;type:uuid"`

	// Snapshot of the tap at order time. Catalog edits never rewrite these.
	BeerName        string `gorm:"column:beer_name;not null"`
	VolumeML        int    `gorm:"column:volume_ml;not null"`
	Price           int    `gorm:"column:price;not null"`
	DispenserNumber int    `gorm:"column:dispenser_number;not null"`

	Status enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending';index"`

	PaymentMethod     *enums.PaymentMethod `gorm:"column:payment_method;type:text"`
	PaymentKey        *string              `gorm:"column:payment_key"`
	PaymentApprovedAt *time.Time           `gorm:"column:payment_approved_at"`

	DispensedML         *int       `gorm:"column:dispensed_ml"`
	DispenseStartedAt   *time.Time `gorm:"column:dispense_started_at"`
	DispenseCompletedAt *time.Time `gorm:"column:dispense_completed_at"`

	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
