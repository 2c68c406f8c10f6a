package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/api/middleware"
	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/api/validators"
	"github.com/oskim/tapflow-backend/internal/orders"
	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/enums"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
	"github.com/oskim/tapflow-backend/pkg/pagination"
)

type adminOrderService interface {
	List(ctx context.Context, filters orders.ListFilters) ([]models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error)
}

type venueScoper interface {
	OwnedVenueIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
}

type refundRequest struct {
	Reason string `json:"reason"`
}

// AdminListOrders browses orders; venue owners only see their own venues.
func AdminListOrders(svc adminOrderService, scoper venueScoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := orders.ListFilters{Limit: limit}

		if raw := strings.TrimSpace(r.URL.Query().Get("venue_id")); raw != "" {
			venueID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid venue id"))
				return
			}
			filters.VenueID = &venueID
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseOrderStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			filters.Status = &status
		}
		if from, parseErr := parseQueryTime(r, "from"); parseErr != nil {
			responses.WriteError(r.Context(), logg, w, parseErr)
			return
		} else if from != nil {
			filters.DateFrom = from
		}
		if to, parseErr := parseQueryTime(r, "to"); parseErr != nil {
			responses.WriteError(r.Context(), logg, w, parseErr)
			return
		} else if to != nil {
			filters.DateTo = to
		}

		if middleware.RoleFromContext(r.Context()) == string(enums.UserRoleVenueOwner) {
			ownerID, parseErr := uuid.Parse(middleware.UserIDFromContext(r.Context()))
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			owned, scopeErr := scoper.OwnedVenueIDs(r.Context(), ownerID)
			if scopeErr != nil {
				responses.WriteError(r.Context(), logg, w, scopeErr)
				return
			}
			if filters.VenueID != nil {
				if !containsVenue(owned, *filters.VenueID) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "venue belongs to another owner"))
					return
				}
			} else {
				if len(owned) == 0 {
					responses.WriteSuccess(w, []models.Order{})
					return
				}
				filters.VenueIDs = owned
			}
		}

		list, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminRefundOrder marks a paid-but-unfinished order refunded.
func AdminRefundOrder(svc adminOrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Refund(r.Context(), orderID, strings.TrimSpace(req.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func parseQueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key+" timestamp")
	}
	return &parsed, nil
}

func containsVenue(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
