package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

func guardedApp(user *domain.User, guard fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/guarded",
		func(c *fiber.Ctx) error {
			if user != nil {
				c.Locals(currentUserKey, user)
			}
			return c.Next()
		},
		guard,
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) },
	)
	return app
}

func TestRequireStaff(t *testing.T) {
	cases := []struct {
		name string
		user *domain.User
		want int
	}{
		{"agent passes", &domain.User{ID: "u1", Role: domain.UserRoleAgent}, fiber.StatusOK},
		{"admin passes", &domain.User{ID: "u2", Role: domain.UserRoleAdmin}, fiber.StatusOK},
		{"customer rejected", &domain.User{ID: "u3", Role: domain.UserRoleCustomer}, fiber.StatusForbidden},
		{"anonymous rejected", nil, fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := guardedApp(tc.user, RequireStaff())
			resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name    string
		user    *domain.User
		allowed []domain.UserRole
		want    int
	}{
		{"allowed role passes", &domain.User{ID: "u1", Role: domain.UserRoleAgent},
			[]domain.UserRole{domain.UserRoleAgent, domain.UserRoleAdmin}, fiber.StatusOK},
		{"disallowed role rejected", &domain.User{ID: "u2", Role: domain.UserRoleCustomer},
			[]domain.UserRole{domain.UserRoleAgent, domain.UserRoleAdmin}, fiber.StatusForbidden},
		{"anonymous unauthorized", nil,
			[]domain.UserRole{domain.UserRoleAgent}, fiber.StatusUnauthorized},
		{"empty allow list passes any authenticated user", &domain.User{ID: "u3", Role: domain.UserRoleCustomer},
			nil, fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := guardedApp(tc.user, RequireRole(tc.allowed...))
			resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
