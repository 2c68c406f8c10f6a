package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVenue(ctx context.Context, venueID uuid.UUID) (*models.Venue, error) {
	var venue models.Venue
	err := r.db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		First(&venue).Error
	if err != nil {
		return nil, err
	}
	return &venue, nil
}

func (r *repository) ListVenues(ctx context.Context, ownerID *uuid.UUID, limit int) ([]models.Venue, error) {
	query := r.db.WithContext(ctx).Model(&models.Venue{})
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}

	var venues []models.Venue
	err := query.
		Order("created_at DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&venues).Error
	if err != nil {
		return nil, err
	}
	return venues, nil
}

func (r *repository) CreateVenue(ctx context.Context, venue *models.Venue) (*models.Venue, error) {
	if err := r.db.WithContext(ctx).Create(venue).Error; err != nil {
		return nil, err
	}
	return venue, nil
}

func (r *repository) UpdateVenue(ctx context.Context, venueID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Venue{}).
		Where("venue_id = ?", venueID).
		Updates(updates).Error
}

func (r *repository) FindBeer(ctx context.Context, beerID uuid.UUID) (*models.Beer, error) {
	var beer models.Beer
	err := r.db.WithContext(ctx).
		Where("beer_id = ?", beerID).
		First(&beer).Error
	if err != nil {
		return nil, err
	}
	return &beer, nil
}

func (r *repository) ListBeers(ctx context.Context, limit int) ([]models.Beer, error) {
	var beers []models.Beer
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&beers).Error
	if err != nil {
		return nil, err
	}
	return beers, nil
}

func (r *repository) CreateBeer(ctx context.Context, beer *models.Beer) (*models.Beer, error) {
	if err := r.db.WithContext(ctx).Create(beer).Error; err != nil {
		return nil, err
	}
	return beer, nil
}

func (r *repository) UpdateBeer(ctx context.Context, beerID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Beer{}).
		Where("beer_id = ?", beerID).
		Updates(updates).Error
}

func (r *repository) FindVenueDispenser(ctx context.Context, venueID uuid.UUID, dispenserID string) (*models.VenueDispenser, error) {
	var mapping models.VenueDispenser
	err := r.db.WithContext(ctx).
		Where("venue_id = ? AND dispenser_id = ?", venueID, dispenserID).
		First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *repository) ListVenueTaps(ctx context.Context, venueID uuid.UUID) ([]models.VenueDispenser, error) {
	var taps []models.VenueDispenser
	err := r.db.WithContext(ctx).
		Preload("Beer").
		Where("venue_id = ? AND is_active = true", venueID).
		Order("dispenser_number ASC").
		Find(&taps).Error
	if err != nil {
		return nil, err
	}
	return taps, nil
}

func (r *repository) UpsertVenueDispenser(ctx context.Context, mapping *models.VenueDispenser) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "venue_id"}, {Name: "dispenser_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"beer_id", "dispenser_number", "position_description",
				"price", "volume_ml", "is_active", "updated_at",
			}),
		}).
		Create(mapping).Error
}

func (r *repository) OwnedVenueIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Venue{}).
		Where("owner_id = ?", ownerID).
		Pluck("venue_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
