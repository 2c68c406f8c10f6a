package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/enums"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
)

// Service exposes the public venue menu and the admin catalog surface.
type Service interface {
	VenueMenu(ctx context.Context, venueID uuid.UUID, dispenserID string) (*VenueMenu, error)

	ListVenues(ctx context.Context, actor Actor, limit int) ([]models.Venue, error)
	GetVenue(ctx context.Context, actor Actor, venueID uuid.UUID) (*models.Venue, error)
	CreateVenue(ctx context.Context, actor Actor, input CreateVenueInput) (*models.Venue, error)
	UpdateVenue(ctx context.Context, actor Actor, venueID uuid.UUID, input UpdateVenueInput) (*models.Venue, error)

	ListBeers(ctx context.Context, limit int) ([]models.Beer, error)
	CreateBeer(ctx context.Context, actor Actor, input CreateBeerInput) (*models.Beer, error)
	UpdateBeer(ctx context.Context, actor Actor, beerID uuid.UUID, input UpdateBeerInput) (*models.Beer, error)

	AssignTap(ctx context.Context, actor Actor, input AssignTapInput) (*models.VenueDispenser, error)
	OwnedVenueIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
}

type service struct {
	repo Repository
}

// NewService builds the catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) VenueMenu(ctx context.Context, venueID uuid.UUID, dispenserID string) (*VenueMenu, error) {
	venue, err := s.repo.FindVenue(ctx, venueID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load venue")
	}
	if !venue.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
	}

	taps, err := s.repo.ListVenueTaps(ctx, venueID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list venue taps")
	}

	menu := &VenueMenu{
		VenueID: venue.ID,
		Name:    venue.Name,
		Address: venue.Address,
		Taps:    make([]TapView, 0, len(taps)),
	}
	for _, tap := range taps {
		if tap.Beer == nil || !tap.Beer.IsActive {
			continue
		}
		if dispenserID != "" && tap.DispenserID != dispenserID {
			continue
		}
		menu.Taps = append(menu.Taps, TapView{
			DispenserID:         tap.DispenserID,
			DispenserNumber:     tap.DispenserNumber,
			PositionDescription: tap.PositionDescription,
			Price:               tap.Price,
			VolumeML:            tap.VolumeML,
			Beer: BeerView{
				BeerID:      tap.Beer.ID,
				Name:        tap.Beer.Name,
				Brand:       tap.Beer.Brand,
				Style:       tap.Beer.Style,
				ABV:         tap.Beer.ABV,
				Description: tap.Beer.Description,
				ImageURL:    tap.Beer.ImageURL,
			},
		})
	}

	if dispenserID != "" && len(menu.Taps) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispenser not available at venue")
	}
	return menu, nil
}

func (s *service) ListVenues(ctx context.Context, actor Actor, limit int) ([]models.Venue, error) {
	var ownerID *uuid.UUID
	if actor.Role == enums.UserRoleVenueOwner {
		ownerID = &actor.UserID
	}
	venues, err := s.repo.ListVenues(ctx, ownerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list venues")
	}
	return venues, nil
}

func (s *service) GetVenue(ctx context.Context, actor Actor, venueID uuid.UUID) (*models.Venue, error) {
	venue, err := s.repo.FindVenue(ctx, venueID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load venue")
	}
	if actor.Role == enums.UserRoleVenueOwner {
		if venue.OwnerID == nil || *venue.OwnerID != actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "venue belongs to another owner")
		}
	}
	return venue, nil
}

func (s *service) CreateVenue(ctx context.Context, actor Actor, input CreateVenueInput) (*models.Venue, error) {
	if actor.Role != enums.UserRoleSuperAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
	}

	venue := &models.Venue{
		ID:             uuid.New(),
		Name:           input.Name,
		Address:        input.Address,
		OwnerID:        input.OwnerID,
		BusinessNumber: input.BusinessNumber,
		QRCodeData:     input.QRCodeData,
		IsActive:       true,
	}
	if _, err := s.repo.CreateVenue(ctx, venue); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create venue")
	}
	return venue, nil
}

func (s *service) UpdateVenue(ctx context.Context, actor Actor, venueID uuid.UUID, input UpdateVenueInput) (*models.Venue, error) {
	if actor.Role != enums.UserRoleSuperAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
	}

	if _, err := s.repo.FindVenue(ctx, venueID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load venue")
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Address != nil {
		updates["address"] = *input.Address
	}
	if input.OwnerID != nil {
		updates["owner_id"] = *input.OwnerID
	}
	if input.BusinessNumber != nil {
		updates["business_number"] = *input.BusinessNumber
	}
	if input.QRCodeData != nil {
		updates["qr_code_data"] = *input.QRCodeData
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.repo.UpdateVenue(ctx, venueID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update venue")
	}
	venue, err := s.repo.FindVenue(ctx, venueID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload venue")
	}
	return venue, nil
}

func (s *service) ListBeers(ctx context.Context, limit int) ([]models.Beer, error) {
	beers, err := s.repo.ListBeers(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list beers")
	}
	return beers, nil
}

func (s *service) CreateBeer(ctx context.Context, actor Actor, input CreateBeerInput) (*models.Beer, error) {
	if actor.Role != enums.UserRoleSuperAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
	}

	beer := &models.Beer{
		ID:              uuid.New(),
		Name:            input.Name,
		Brand:           input.Brand,
		Style:           input.Style,
		ABV:             input.ABV,
		Description:     input.Description,
		ImageURL:        input.ImageURL,
		DefaultPrice:    input.DefaultPrice,
		DefaultVolumeML: input.DefaultVolumeML,
		IsActive:        true,
	}
	if _, err := s.repo.CreateBeer(ctx, beer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create beer")
	}
	return beer, nil
}

func (s *service) UpdateBeer(ctx context.Context, actor Actor, beerID uuid.UUID, input UpdateBeerInput) (*models.Beer, error) {
	if actor.Role != enums.UserRoleSuperAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
	}

	if _, err := s.repo.FindBeer(ctx, beerID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "beer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load beer")
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Brand != nil {
		updates["brand"] = *input.Brand
	}
	if input.Style != nil {
		updates["style"] = *input.Style
	}
	if input.ABV != nil {
		updates["abv"] = *input.ABV
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.DefaultPrice != nil {
		updates["default_price"] = *input.DefaultPrice
	}
	if input.DefaultVolumeML != nil {
		updates["default_volume_ml"] = *input.DefaultVolumeML
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.repo.UpdateBeer(ctx, beerID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update beer")
	}
	beer, err := s.repo.FindBeer(ctx, beerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload beer")
	}
	return beer, nil
}

func (s *service) AssignTap(ctx context.Context, actor Actor, input AssignTapInput) (*models.VenueDispenser, error) {
	if actor.Role != enums.UserRoleSuperAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
	}

	if _, err := s.repo.FindVenue(ctx, input.VenueID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load venue")
	}
	if input.BeerID != nil {
		if _, err := s.repo.FindBeer(ctx, *input.BeerID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "beer not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load beer")
		}
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	mapping := &models.VenueDispenser{
		VenueID:             input.VenueID,
		DispenserID:         input.DispenserID,
		BeerID:              input.BeerID,
		DispenserNumber:     input.DispenserNumber,
		PositionDescription: input.PositionDescription,
		Price:               input.Price,
		VolumeML:            input.VolumeML,
		IsActive:            active,
	}
	if err := s.repo.UpsertVenueDispenser(ctx, mapping); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign tap")
	}
	return mapping, nil
}

func (s *service) OwnedVenueIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.repo.OwnedVenueIDs(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list owned venues")
	}
	return ids, nil
}
