package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/entitlements"
	"github.com/ManuelReschke/Scribefox/internal/pkg/usercontext"
)

// AccountController reports the caller's account, plan entitlements and API key state
type AccountController struct {
	users    repository.UserRepository
	settings repository.UserSettingsRepository
}

// NewAccountController creates a new account controller
func NewAccountController(users repository.UserRepository, settings repository.UserSettingsRepository) *AccountController {
	return &AccountController{users: users, settings: settings}
}

// HandleGetUserAccount returns account information for the authenticated user (API key or session).
func (ac *AccountController) HandleGetUserAccount(c *fiber.Ctx) error {
	const op = "controllers.GetUserAccount"
	userCtx := usercontext.GetUserContext(c)
	ctx := c.UserContext()

	account, err := ac.users.GetByID(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(op, "user not found")
		}
		return apperr.Unavailable(op, err)
	}
	settings, err := ac.settings.GetOrCreate(ctx, userCtx.UserID)
	if err != nil {
		return apperr.Unavailable(op, err)
	}

	plan := entitlements.Normalize(settings.Plan)
	return c.JSON(fiber.Map{
		"id":                   account.ID,
		"username":             account.Name,
		"email":                account.Email,
		"status":               account.Status,
		"is_admin":             account.IsAdmin(),
		"auth_source":          userCtx.Source,
		"created_at":           account.CreatedAt.UTC().Format(time.RFC3339),
		"api_key_prefix":       settings.APIKeyPrefix,
		"api_key_active":       settings.HasActiveAPIKey(),
		"api_key_last_used_at": formatTimePtr(settings.APIKeyLastUsedAt),
		"entitlements": fiber.Map{
			"plan":                plan,
			"paid":                entitlements.IsPaid(plan),
			"articles_per_period": entitlements.EffectiveQuota(settings),
		},
	})
}

// HandleRotateAPIKey issues a new API key. The raw key is only returned here.
func (ac *AccountController) HandleRotateAPIKey(c *fiber.Ctx) error {
	const op = "controllers.RotateAPIKey"
	userID := usercontext.GetUserID(c)
	ctx := c.UserContext()

	settings, err := ac.settings.GetOrCreate(ctx, userID)
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	raw, err := settings.IssueAPIKey()
	if err != nil {
		return err
	}
	if err := ac.settings.Save(ctx, settings); err != nil {
		return apperr.Unavailable(op, err)
	}
	log.Infof("[Account] issued api key %s for user %d", settings.APIKeyPrefix, userID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key":    raw,
		"prefix":     settings.APIKeyPrefix,
		"created_at": formatTimePtr(settings.APIKeyCreatedAt),
	})
}

func (ac *AccountController) HandleRevokeAPIKey(c *fiber.Ctx) error {
	const op = "controllers.RevokeAPIKey"
	userID := usercontext.GetUserID(c)
	ctx := c.UserContext()

	settings, err := ac.settings.GetOrCreate(ctx, userID)
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	if !settings.HasActiveAPIKey() {
		return c.SendStatus(fiber.StatusNoContent)
	}
	settings.RevokeAPIKey()
	if err := ac.settings.Save(ctx, settings); err != nil {
		return apperr.Unavailable(op, err)
	}
	log.Infof("[Account] revoked api key for user %d", userID)
	return c.SendStatus(fiber.StatusNoContent)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
