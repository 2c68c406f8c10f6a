package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/internal/catalog"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
)

type venueMenuReader interface {
	VenueMenu(ctx context.Context, venueID uuid.UUID, dispenserID string) (*catalog.VenueMenu, error)
}

// VenueMenu serves the public tap list customers see after scanning a QR code.
func VenueMenu(svc venueMenuReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		venueID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "venueId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid venue id"))
			return
		}
		dispenserID := strings.TrimSpace(r.URL.Query().Get("dispenser"))

		menu, err := svc.VenueMenu(r.Context(), venueID, dispenserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, menu)
	}
}
