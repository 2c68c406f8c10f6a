package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/pkg/config"
	"github.com/oskim/tapflow-backend/pkg/deviceauth"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
)

// DeviceCredentialStore resolves device secrets and records liveness.
type DeviceCredentialStore interface {
	DeviceSecret(ctx context.Context, dispenserID string) (string, bool, error)
	TouchLastSeen(ctx context.Context, dispenserID string, at time.Time) error
}

// DeviceAuth verifies the HMAC headers a dispenser sends and seeds the
// context with the authenticated device id. When the route carries an {id}
// path parameter it must match the signer.
func DeviceAuth(cfg config.DeviceConfig, store DeviceCredentialStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := deviceauth.Credentials{
				DispenserID: r.Header.Get(deviceauth.HeaderDispenserID),
				Timestamp:   r.Header.Get(deviceauth.HeaderTimestamp),
				Signature:   r.Header.Get(deviceauth.HeaderSignature),
			}
			if !creds.Complete() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing device credentials"))
				return
			}

			secret, found, err := store.DeviceSecret(r.Context(), creds.DispenserID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device secret"))
				return
			}
			if !found {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown device"))
				return
			}

			if err := deviceauth.Verify(secret, creds, time.Now(), cfg.SignatureSkew); err != nil {
				responses.WriteError(r.Context(), logg, w, deviceAuthError(err))
				return
			}

			if pathID := chi.URLParam(r, "id"); pathID != "" && pathID != creds.DispenserID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "device id mismatch"))
				return
			}

			ctx := WithDispenserID(r.Context(), creds.DispenserID)
			if logg != nil {
				ctx = logg.WithDispenserID(ctx, creds.DispenserID)
			}

			if touchErr := store.TouchLastSeen(ctx, creds.DispenserID, time.Now()); touchErr != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "touch_error", touchErr.Error()), "device.last_seen.touch_failed")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func deviceAuthError(err error) error {
	switch {
	case errors.Is(err, deviceauth.ErrTimestampSkew):
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "timestamp outside allowed window")
	case errors.Is(err, deviceauth.ErrBadTimestamp):
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed timestamp")
	case errors.Is(err, deviceauth.ErrNotProvisioned):
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "device not provisioned")
	default:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid signature")
	}
}
