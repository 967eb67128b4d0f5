package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/ManuelReschke/Scribefox/app/repository"
	sess "github.com/ManuelReschke/Scribefox/internal/pkg/session"
	"github.com/ManuelReschke/Scribefox/internal/pkg/usercontext"
)

// UserContext identifies the caller for every request: an API key header wins,
// then the login session. Unidentified requests continue as anonymous.
func UserContext(store *session.Store, users repository.UserRepository, settings repository.UserSettingsRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if uc, ok, err := identifyAPIKey(c, users); ok {
			if err != nil {
				return err
			}
			usercontext.Set(c, uc)
			return c.Next()
		}

		usercontext.Set(c, sessionUser(c, store, settings))
		return c.Next()
	}
}

func sessionUser(c *fiber.Ctx, store *session.Store, settings repository.UserSettingsRepository) usercontext.UserContext {
	if store == nil {
		return usercontext.UserContext{}
	}
	s, err := store.Get(c)
	if err != nil {
		return usercontext.UserContext{}
	}
	userID, ok := s.Get(sess.KeyUserID).(uint)
	if !ok || userID == 0 {
		return usercontext.UserContext{}
	}

	name, _ := s.Get(sess.KeyName).(string)
	isAdmin, _ := s.Get(sess.KeyIsAdmin).(bool)
	plan := "free"
	if settings != nil {
		if us, err := settings.GetOrCreate(c.UserContext(), userID); err == nil && us.Plan != "" {
			plan = us.Plan
		}
	}
	return usercontext.UserContext{
		UserID:     userID,
		Username:   name,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
		Plan:       plan,
		Source:     usercontext.SourceSession,
	}
}
