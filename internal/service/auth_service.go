package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// Session is the result of a successful authentication: a short-lived access
// token for the Authorization header and a rotating refresh token the
// transport layer carries in an HttpOnly cookie.
type Session struct {
	User           *domain.User
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// AuthService coordinates registration, login and token refresh flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	refresh    *auth.RefreshStore
	bcryptCost int
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	RefreshStore *auth.RefreshStore
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		refresh:    deps.RefreshStore,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates a new customer account and opens a session.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if err != pgx.ErrNoRows {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.UserRoleCustomer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.openSession(ctx, user)
}

// Login authenticates by email and password and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.openSession(ctx, user)
}

// Refresh consumes the presented refresh token and opens a fresh session.
// The old token is invalid afterwards regardless of outcome.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, next, err := s.refresh.Rotate(ctx, refreshToken)
	if err != nil {
		if err == auth.ErrRefreshTokenInvalid {
			return nil, apperrors.NewUnauthorized("invalid refresh token")
		}
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	access, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:           user,
		AccessToken:    access,
		AccessExpires:  exp,
		RefreshToken:   next,
		RefreshExpires: time.Now().Add(s.refresh.TTL()),
	}, nil
}

// Logout revokes the presented refresh token. The access token simply ages
// out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refresh.Revoke(ctx, refreshToken)
}

// ChangePassword verifies the current password before updating to a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) openSession(ctx context.Context, user *domain.User) (*Session, error) {
	access, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.refresh.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:           user,
		AccessToken:    access,
		AccessExpires:  exp,
		RefreshToken:   refresh,
		RefreshExpires: time.Now().Add(s.refresh.TTL()),
	}, nil
}
