package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// AuthHandler manages registration, login and session lifecycle endpoints.
type AuthHandler struct {
	service *service.AuthService
	cfg     config.AuthConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{service: authService, cfg: cfg}
}

// Register POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		return apperrors.NewValidationError("name, email and a password of at least 8 characters required", nil)
	}

	session, err := h.service.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, session)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": authResponse(session)})
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	session, err := h.service.Login(c.UserContext(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, session)
	return c.JSON(fiber.Map{"data": authResponse(session)})
}

// Refresh POST /auth/refresh. Rotates the refresh token carried in the cookie.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(h.cfg.RefreshCookieName)
	if token == "" {
		return apperrors.NewUnauthorized("missing refresh token")
	}

	session, err := h.service.Refresh(c.UserContext(), token)
	if err != nil {
		h.clearRefreshCookie(c)
		return err
	}
	h.setRefreshCookie(c, session)
	return c.JSON(fiber.Map{"data": authResponse(session)})
}

// Logout POST /auth/logout. Revokes the refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := c.Cookies(h.cfg.RefreshCookieName)
	if err := h.service.Logout(c.UserContext(), token); err != nil {
		return err
	}
	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"data": fiber.Map{"logged_out": true}})
}

// ChangePassword POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CurrentPassword == "" || len(req.NewPassword) < 8 {
		return apperrors.NewValidationError("current password and a new password of at least 8 characters required", nil)
	}

	if err := h.service.ChangePassword(c.UserContext(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"changed": true}})
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, session *service.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.RefreshCookieName,
		Value:    session.RefreshToken,
		Expires:  session.RefreshExpires,
		Path:     "/auth",
		HTTPOnly: true,
		Secure:   h.cfg.RefreshCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.RefreshCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		Path:     "/auth",
		HTTPOnly: true,
		Secure:   h.cfg.RefreshCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func authResponse(session *service.Session) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     session.AccessToken,
		ExpiresAt: session.AccessExpires,
	}
}
