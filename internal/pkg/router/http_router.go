package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Scribefox/internal/pkg/middleware"
)

type HttpRouter struct {
	deps *Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContext(h.deps.Sessions, h.deps.Repos.User, h.deps.Repos.UserSettings))

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter(deps *Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
