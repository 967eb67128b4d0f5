package usercontext

import "github.com/gofiber/fiber/v2"

// AuthSource names how the caller was identified
type AuthSource string

const (
	SourceNone    AuthSource = ""
	SourceSession AuthSource = "session"
	SourceAPIKey  AuthSource = "api_key"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID     uint       `json:"user_id"`
	Username   string     `json:"username"`
	IsLoggedIn bool       `json:"is_logged_in"`
	IsAdmin    bool       `json:"is_admin"`
	Plan       string     `json:"plan"`
	Source     AuthSource `json:"source"`
}

// Set stores uc on the request together with the flat locals older handlers read.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(localsKey, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyUserID, uc.UserID)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(localsKey).(UserContext); ok {
		return uc
	}
	return UserContext{}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
