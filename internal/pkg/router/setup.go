package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ManuelReschke/Scribefox/app/controllers"
	"github.com/ManuelReschke/Scribefox/app/repository"
)

// Router installs a group of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries everything the routes need. Sessions may be nil, in
// which case callers can only authenticate with API keys.
type Dependencies struct {
	Sessions    *session.Store
	Repos       *repository.Repositories
	Drafts      *controllers.DraftController
	Styles      *controllers.StyleController
	Billing     *controllers.BillingController
	Account     *controllers.AccountController
	AdminLedger *controllers.AdminLedgerController
	Metrics     prometheus.Gatherer
}

func InstallRouter(app *fiber.App, deps *Dependencies) {
	// HttpRouter installs the global UserContext middleware, so it goes
	// first; the API routes depend on it.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
