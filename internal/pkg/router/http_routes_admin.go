package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Scribefox/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)

	// Ledger sync failures
	adminGroup.Get("/api/ledger-sync/failed", h.deps.AdminLedger.HandleListFailed)
	adminGroup.Post("/api/ledger-sync/retry", h.deps.AdminLedger.HandleRetry)
}
