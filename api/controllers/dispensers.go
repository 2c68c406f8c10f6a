package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/api/validators"
	"github.com/oskim/tapflow-backend/internal/devices"
	"github.com/oskim/tapflow-backend/pkg/config"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
	"github.com/oskim/tapflow-backend/pkg/pagination"
)

type permitResponder interface {
	PermitResponse(ctx context.Context, dispenserID string, permitted bool, maxML int, userName, message string) error
}

type permitRequest struct {
	NFCUID    string `json:"nfc_uid" validate:"required"`
	Timestamp *int64 `json:"timestamp"`
}

type permitPayload struct {
	Permitted bool   `json:"permitted"`
	MaxML     int    `json:"max_ml"`
	UserName  string `json:"user_name"`
	Message   string `json:"message"`
}

// ProvisionDispenser registers a device and returns its secret. Calling it
// again for a known id returns the stored credentials unchanged.
func ProvisionDispenser(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input devices.ProvisionInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, created, err := svc.Provision(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// ListDispensers returns all provisioned devices, secrets stripped.
func ListDispensers(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispensers, err := svc.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispensers)
	}
}

// GetDispenser returns one device record, secret stripped.
func GetDispenser(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dispenser, err := svc.Get(r.Context(), dispenserPathID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispenser)
	}
}

// PatchDispenser updates device metadata.
func PatchDispenser(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input devices.PatchInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispenser, err := svc.Patch(r.Context(), dispenserPathID(r), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispenser)
	}
}

// ReadNVS serves the full config to devices and admins.
func ReadNVS(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.ReadNVS(r.Context(), dispenserPathID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// NVSVersion serves the cheap version-only poll.
func NVSVersion(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := svc.NVSVersion(r.Context(), dispenserPathID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"nvs_version": version})
	}
}

// DeviceWriteNVS applies a device-originated config write; a newer stored
// version wins with a conflict carrying server_version.
func DeviceWriteNVS(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input devices.NVSWriteInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.DeviceWriteNVS(r.Context(), dispenserPathID(r), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminWriteNVS applies an operator config write that always wins.
func AdminWriteNVS(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input devices.NVSWriteInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AdminWriteNVS(r.Context(), dispenserPathID(r), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// DispenserStatus reports device health: online window, telemetry snapshot.
func DispenserStatus(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.Status(r.Context(), dispenserPathID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// PermitPour answers a device permit request carrying the scanned NFC card
// uid. Every card is currently permitted the configured maximum pour; the
// answer goes back both synchronously and over the command channel.
func PermitPour(dispatcher permitResponder, cfg config.DeviceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dispenserID := dispenserPathID(r)

		var req permitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// TODO: resolve the cardholder (name, per-user max_ml) from req.NFCUID
		// once a card registry exists.
		payload := permitPayload{
			Permitted: true,
			MaxML:     cfg.DefaultMaxPourML,
			UserName:  "Guest",
			Message:   "Dispensing permitted",
		}

		if err := dispatcher.PermitResponse(r.Context(), dispenserID, payload.Permitted, payload.MaxML, payload.UserName, payload.Message); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish permit response"))
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

func dispenserPathID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}
