package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/pkg/auth"
	"github.com/oskim/tapflow-backend/pkg/config"
	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/enums"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/logger"
	"github.com/oskim/tapflow-backend/pkg/security"
)

// Service handles admin authentication and user management.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Me(ctx context.Context, userID uuid.UUID) (*UserView, error)

	ListUsers(ctx context.Context, actorRole enums.UserRole, limit int) ([]UserView, error)
	GetUser(ctx context.Context, actorRole enums.UserRole, userID uuid.UUID) (*UserView, error)
	CreateUser(ctx context.Context, actorRole enums.UserRole, input CreateUserInput) (*UserView, error)
	UpdateUser(ctx context.Context, actorRole enums.UserRole, userID uuid.UUID, input UpdateUserInput) (*UserView, error)
}

type service struct {
	repo   Repository
	jwtCfg config.JWTConfig
	pwCfg  config.PasswordConfig
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the users service.
func NewService(repo Repository, jwtCfg config.JWTConfig, pwCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{
		repo:   repo,
		jwtCfg: jwtCfg,
		pwCfg:  pwCfg,
		logg:   logg,
		now:    time.Now,
	}, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.repo.FindUserByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, invalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, invalidCredentials()
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}

	now := s.now()
	token, err := auth.MintAccessToken(s.jwtCfg, now, auth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	// Best effort; a failed timestamp write must not block login.
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to record last login")
	}
	user.LastLoginAt = &now

	return &LoginResult{Token: token, User: toUserView(user)}, nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*UserView, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := toUserView(user)
	return &view, nil
}

func (s *service) ListUsers(ctx context.Context, actorRole enums.UserRole, limit int) ([]UserView, error) {
	if actorRole != enums.UserRoleSuperAdmin {
		return nil, insufficientRole()
	}
	users, err := s.repo.ListUsers(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	views := make([]UserView, 0, len(users))
	for i := range users {
		views = append(views, toUserView(&users[i]))
	}
	return views, nil
}

func (s *service) GetUser(ctx context.Context, actorRole enums.UserRole, userID uuid.UUID) (*UserView, error) {
	if actorRole != enums.UserRoleSuperAdmin {
		return nil, insufficientRole()
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := toUserView(user)
	return &view, nil
}

func (s *service) CreateUser(ctx context.Context, actorRole enums.UserRole, input CreateUserInput) (*UserView, error) {
	if actorRole != enums.UserRoleSuperAdmin {
		return nil, insufficientRole()
	}

	role, err := enums.ParseUserRole(input.Role)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	if _, err := s.repo.FindUserByEmail(ctx, input.Email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email already registered")
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hash,
		Name:         input.Name,
		Phone:        input.Phone,
		Role:         role,
		IsActive:     true,
	}
	if _, err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	view := toUserView(user)
	return &view, nil
}

func (s *service) UpdateUser(ctx context.Context, actorRole enums.UserRole, userID uuid.UUID, input UpdateUserInput) (*UserView, error) {
	if actorRole != enums.UserRoleSuperAdmin {
		return nil, insufficientRole()
	}
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Role != nil {
		role, err := enums.ParseUserRole(*input.Role)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		updates["role"] = role
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Password != nil {
		hash, err := security.HashPassword(*input.Password, s.pwCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		updates["password_hash"] = hash
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.repo.UpdateUser(ctx, userID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := toUserView(user)
	return &view, nil
}

func (s *service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
}

func insufficientRole() error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
}

func toUserView(user *models.User) UserView {
	return UserView{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Phone:       user.Phone,
		Role:        user.Role,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}
