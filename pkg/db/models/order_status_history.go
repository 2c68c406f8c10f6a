package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/pkg/enums"
)

// OrderStatusHistory is the append-only transition log for an order. Seq is
// allocated inside the transition transaction; the row with the highest seq
// always matches the order's current status.
type OrderStatusHistory struct {
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;primaryKey"`
	Seq       int               `gorm:"column:seq;not null;primaryKey"`
	Status    enums.OrderStatus `gorm:"column:status;type:text;not null"`
	Message   string            `gorm:"column:message;not null;default:''"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// TableName keeps the plural-noun convention off this log table.
func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
