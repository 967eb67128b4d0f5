package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/usercontext"
)

// identifyAPIKey resolves a user API key to a user context. ok is false when
// the request carries no key.
func identifyAPIKey(c *fiber.Ctx, users repository.UserRepository) (usercontext.UserContext, bool, error) {
	apiKey := extractAPIKeyFromHeader(c)
	if apiKey == "" {
		return usercontext.UserContext{}, false, nil
	}

	ctx := c.UserContext()
	user, settings, err := users.GetByAPIKeyHash(ctx, models.HashAPIKey(apiKey))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return usercontext.UserContext{}, true, fiber.NewError(fiber.StatusUnauthorized, "invalid API key")
		}
		return usercontext.UserContext{}, true, apperr.Unavailable("middleware.APIKey", err)
	}
	if !user.IsActive() {
		return usercontext.UserContext{}, true, fiber.NewError(fiber.StatusForbidden, "user inactive")
	}

	if err := users.TouchAPIKey(ctx, settings.ID); err != nil {
		log.Warnf("[Auth] failed to update api key usage for user %d: %v", user.ID, err)
	}

	plan := settings.Plan
	if plan == "" {
		plan = "free"
	}
	return usercontext.UserContext{
		UserID:     user.ID,
		Username:   user.Name,
		IsLoggedIn: true,
		IsAdmin:    user.IsAdmin(),
		Plan:       plan,
		Source:     usercontext.SourceAPIKey,
	}, true, nil
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
