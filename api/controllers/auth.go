package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/api/middleware"
	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/api/validators"
	"github.com/oskim/tapflow-backend/internal/users"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
)

type authService interface {
	Login(ctx context.Context, input users.LoginInput) (*users.LoginResult, error)
	Me(ctx context.Context, userID uuid.UUID) (*users.UserView, error)
}

// Login exchanges email+password for an access token.
func Login(svc authService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input users.LoginInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Me echoes the authenticated user's profile.
func Me(svc authService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		view, err := svc.Me(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
