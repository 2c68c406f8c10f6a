package controllers

import (
	"context"
	"net/http"

	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/pkg/config"
)

// ReadyCheck pings one downstream dependency.
type ReadyCheck func(ctx context.Context) error

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TapFlow-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports per-dependency status and 503 when any check fails.
func HealthReady(cfg *config.Config, checks map[string]ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TapFlow-Env", cfg.App.Env)

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(r.Context()); err != nil {
				deps[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "up"
		}

		body := map[string]any{"status": "ready", "dependencies": deps}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		responses.WriteSuccessStatus(w, status, body)
	}
}
