package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/pkg/db/models"
)

// Repository defines persistence operations for venues, beers and the
// venue-dispenser tap mappings. It also satisfies the catalog reader the
// order engine snapshots from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindVenue(ctx context.Context, venueID uuid.UUID) (*models.Venue, error)
	ListVenues(ctx context.Context, ownerID *uuid.UUID, limit int) ([]models.Venue, error)
	CreateVenue(ctx context.Context, venue *models.Venue) (*models.Venue, error)
	UpdateVenue(ctx context.Context, venueID uuid.UUID, updates map[string]any) error

	FindBeer(ctx context.Context, beerID uuid.UUID) (*models.Beer, error)
	ListBeers(ctx context.Context, limit int) ([]models.Beer, error)
	CreateBeer(ctx context.Context, beer *models.Beer) (*models.Beer, error)
	UpdateBeer(ctx context.Context, beerID uuid.UUID, updates map[string]any) error

	FindVenueDispenser(ctx context.Context, venueID uuid.UUID, dispenserID string) (*models.VenueDispenser, error)
	// ListVenueTaps returns the venue's active mappings with their beer
	// preloaded, ordered by dispenser_number.
	ListVenueTaps(ctx context.Context, venueID uuid.UUID) ([]models.VenueDispenser, error)
	UpsertVenueDispenser(ctx context.Context, mapping *models.VenueDispenser) error
	OwnedVenueIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
}
