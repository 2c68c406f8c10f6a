package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/enums"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderWithHistory(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// UpdateStatusGuarded applies updates only while the order sits in one of
	// the expected statuses. Returns false when the guard matched no row.
	UpdateStatusGuarded(ctx context.Context, orderID uuid.UUID, expected []enums.OrderStatus, updates map[string]any) (bool, error)
	NextHistorySeq(ctx context.Context, orderID uuid.UUID) (int, error)
	AppendHistory(ctx context.Context, entries []models.OrderStatusHistory) error
	CreateDispenseLog(ctx context.Context, log *models.DispenseLog) error
	ListOrders(ctx context.Context, filters ListFilters) ([]models.Order, error)
}

// CatalogReader resolves the catalog rows an order snapshot is built from.
type CatalogReader interface {
	FindVenue(ctx context.Context, venueID uuid.UUID) (*models.Venue, error)
	FindVenueDispenser(ctx context.Context, venueID uuid.UUID, dispenserID string) (*models.VenueDispenser, error)
	FindBeer(ctx context.Context, beerID uuid.UUID) (*models.Beer, error)
}

// CommandDispatcher pushes pour commands to the device channel.
type CommandDispatcher interface {
	Dispense(ctx context.Context, dispenserID string, orderID uuid.UUID) error
}
