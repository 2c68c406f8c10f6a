package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/pkg/enums"
)

// CreateInput captures the fields a customer supplies when ordering a pour.
type CreateInput struct {
	VenueID     uuid.UUID
	DispenserID string
	CustomerID  *uuid.UUID
}

// PayInput carries the (mocked) payment confirmation for an order.
type PayInput struct {
	OrderID       uuid.UUID
	PaymentMethod *enums.PaymentMethod
	PaymentKey    *string
}

// DeviceEventInput is a completed/error report from the pouring device.
type DeviceEventInput struct {
	OrderID         uuid.UUID
	DispenserID     string
	Event           enums.DeviceEvent
	DispensedML     *int
	DurationMS      *int
	FlowmeterPulses *int
	PressurePSI     *float64
	TemperatureC    *float64
	KegRemaining    *float64
	ErrorCode       *string
	ErrorMessage    *string
	ReportedAt      time.Time
}

// ListFilters describe the admin order listing inputs.
type ListFilters struct {
	VenueID  *uuid.UUID
	VenueIDs []uuid.UUID
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

// HistoryEntry is one transition in the order's audit trail.
type HistoryEntry struct {
	Seq       int               `json:"seq"`
	Status    enums.OrderStatus `json:"status"`
	Message   string            `json:"message,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// StatusProjection is the customer-facing polling view of an order.
type StatusProjection struct {
	OrderID         uuid.UUID         `json:"order_id"`
	Status          enums.OrderStatus `json:"status"`
	BeerName        string            `json:"beer_name"`
	VolumeML        int               `json:"volume_ml"`
	Price           int               `json:"price"`
	DispenserNumber int               `json:"dispenser_number"`
	DispensedML     *int              `json:"dispensed_ml,omitempty"`
	History         []HistoryEntry    `json:"status_history"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
