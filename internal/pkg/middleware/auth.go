package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Scribefox/internal/pkg/usercontext"
)

// RequireAuth rejects anonymous requests with a JSON 401.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return fiber.NewError(fiber.StatusUnauthorized, "login required")
	}
	return c.Next()
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return fiber.NewError(fiber.StatusUnauthorized, "login required")
	}
	if !uc.IsAdmin {
		return fiber.NewError(fiber.StatusForbidden, "admin only")
	}
	return c.Next()
}
