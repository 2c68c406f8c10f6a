package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/api/middleware"
	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/api/validators"
	"github.com/oskim/tapflow-backend/internal/catalog"
	"github.com/oskim/tapflow-backend/pkg/enums"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
	"github.com/oskim/tapflow-backend/pkg/pagination"
)

func catalogActor(r *http.Request) (catalog.Actor, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return catalog.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return catalog.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
	}
	return catalog.Actor{UserID: userID, Role: role}, nil
}

// AdminListVenues lists venues visible to the actor.
func AdminListVenues(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		venues, err := svc.ListVenues(r.Context(), actor, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, venues)
	}
}

// AdminGetVenue returns one venue, enforcing owner scoping.
func AdminGetVenue(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		venueID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "venueId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid venue id"))
			return
		}

		venue, err := svc.GetVenue(r.Context(), actor, venueID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, venue)
	}
}

// AdminCreateVenue registers a venue.
func AdminCreateVenue(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input catalog.CreateVenueInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		venue, err := svc.CreateVenue(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, venue)
	}
}

// AdminUpdateVenue applies a partial venue update.
func AdminUpdateVenue(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		venueID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "venueId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid venue id"))
			return
		}

		var input catalog.UpdateVenueInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		venue, err := svc.UpdateVenue(r.Context(), actor, venueID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, venue)
	}
}

// AdminListBeers lists the beer catalog.
func AdminListBeers(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		beers, err := svc.ListBeers(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, beers)
	}
}

// AdminCreateBeer adds a beer to the catalog.
func AdminCreateBeer(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input catalog.CreateBeerInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		beer, err := svc.CreateBeer(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, beer)
	}
}

// AdminUpdateBeer applies a partial beer update.
func AdminUpdateBeer(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		beerID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "beerId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid beer id"))
			return
		}

		var input catalog.UpdateBeerInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		beer, err := svc.UpdateBeer(r.Context(), actor, beerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, beer)
	}
}

// AdminAssignTap creates or replaces a venue-dispenser mapping.
func AdminAssignTap(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input catalog.AssignTapInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mapping, err := svc.AssignTap(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapping)
	}
}
