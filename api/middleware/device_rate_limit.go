package middleware

import (
	"fmt"
	"net/http"

	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/pkg/config"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
)

// DeviceStatusRateLimit throttles status reports per dispenser with a fixed
// window counter. Runs after DeviceAuth so the reporter identity is trusted.
func DeviceStatusRateLimit(cfg config.DeviceConfig, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.StatusRateWindow <= 0 || cfg.StatusRateLimit <= 0 || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			dispenserID := DispenserIDFromContext(ctx)
			if dispenserID == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("rl:device:status:%s", dispenserID)
			allowed, count, err := allow(ctx, store, key, cfg.StatusRateWindow, int64(cfg.StatusRateLimit))
			if err != nil {
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"dispenser_id":   dispenserID,
						"attempts":       count,
						"limit":          cfg.StatusRateLimit,
						"window_seconds": int(cfg.StatusRateWindow.Seconds()),
					})
					logg.Warn(logCtx, "device.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
