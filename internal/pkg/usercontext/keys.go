package usercontext

// Locals keys used by middlewares and controllers
const (
	localsKey        = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
)
