package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/api/middleware"
	"github.com/oskim/tapflow-backend/api/responses"
	"github.com/oskim/tapflow-backend/api/validators"
	"github.com/oskim/tapflow-backend/internal/users"
	"github.com/oskim/tapflow-backend/pkg/enums"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
	"github.com/oskim/tapflow-backend/pkg/pagination"
)

type userAdminService interface {
	ListUsers(ctx context.Context, actorRole enums.UserRole, limit int) ([]users.UserView, error)
	GetUser(ctx context.Context, actorRole enums.UserRole, userID uuid.UUID) (*users.UserView, error)
	CreateUser(ctx context.Context, actorRole enums.UserRole, input users.CreateUserInput) (*users.UserView, error)
	UpdateUser(ctx context.Context, actorRole enums.UserRole, userID uuid.UUID, input users.UpdateUserInput) (*users.UserView, error)
}

func actorRole(r *http.Request) enums.UserRole {
	return enums.UserRole(middleware.RoleFromContext(r.Context()))
}

// AdminListUsers lists admin accounts.
func AdminListUsers(svc userAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.ListUsers(r.Context(), actorRole(r), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// AdminGetUser returns one admin account.
func AdminGetUser(svc userAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetUser(r.Context(), actorRole(r), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminCreateUser registers an admin account.
func AdminCreateUser(svc userAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input users.CreateUserInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreateUser(r.Context(), actorRole(r), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// AdminUpdateUser applies a partial account update.
func AdminUpdateUser(svc userAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input users.UpdateUserInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateUser(r.Context(), actorRole(r), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func parseUserID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "userId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return userID, nil
}
