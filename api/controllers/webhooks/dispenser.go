// Package webhooks holds device-facing callback endpoints.
package webhooks

import (
	"context"
	"net/http"

	"github.com/oskim/tapflow-backend/api/middleware"
	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/api/validators"
	"github.com/oskim/tapflow-backend/internal/ingest"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
)

type StatusIngestService interface {
	HandleStatus(ctx context.Context, dispenserID string, report ingest.StatusReport) (*ingest.Result, error)
}

// DispenserStatus receives pour progress reports from devices. The reporter
// identity comes from the authenticated HMAC headers, not the payload.
func DispenserStatus(svc StatusIngestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingest service unavailable"))
			return
		}

		dispenserID := middleware.DispenserIDFromContext(ctx)
		if dispenserID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "device authentication required"))
			return
		}

		var report ingest.StatusReport
		if err := validators.DecodeJSONBody(r, &report); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.HandleStatus(ctx, dispenserID, report)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
