package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ManuelReschke/Scribefox/app/controllers"
	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/billing"
	"github.com/ManuelReschke/Scribefox/internal/pkg/cache"
	"github.com/ManuelReschke/Scribefox/internal/pkg/database"
	"github.com/ManuelReschke/Scribefox/internal/pkg/draft"
	"github.com/ManuelReschke/Scribefox/internal/pkg/env"
	"github.com/ManuelReschke/Scribefox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
	"github.com/ManuelReschke/Scribefox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/Scribefox/internal/pkg/router"
	"github.com/ManuelReschke/Scribefox/internal/pkg/session"
)

func main() {
	env.SetupEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, manager, err := NewApplication(ctx)
	if err != nil {
		log.Fatalf("[Main] startup failed: %v", err)
	}

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Errorf("[Main] listener stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("[Main] shutting down")

	// stop the workers first so no sync job starts while requests drain
	manager.Stop()
	if err := app.ShutdownWithTimeout(env.GetDuration("SHUTDOWN_TIMEOUT", 15*time.Second)); err != nil {
		log.Errorf("[Main] shutdown: %v", err)
	}
}

// NewApplication wires storage, the work queue and the core services into a Fiber app.
func NewApplication(ctx context.Context) (*fiber.App, *jobqueue.Manager, error) {
	db, err := database.Connect()
	if err != nil {
		return nil, nil, err
	}
	rdb := cache.NewClient()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := counter.New(reg, rdb)

	queue := jobqueue.NewQueue(rdb, env.GetInt("JOBQUEUE_WORKERS", 2)).WithMetrics(metrics)
	var dispatcher ledgersync.Dispatcher = ledgersync.Nop
	provider, err := newLedgerProvider(ctx, rdb)
	if err != nil {
		return nil, nil, err
	}
	if provider != nil {
		syncer := ledgersync.NewServiceFromDB(db, provider, metrics)
		queue.Register(jobqueue.JobTypeLedgerSync, jobqueue.NewLedgerSyncHandler(syncer))
		dispatcher = queue
	}
	manager := jobqueue.NewManager(queue, env.GetDuration("JOBQUEUE_STATS_INTERVAL", 5*time.Minute))
	manager.Start()

	repos := repository.NewRepositories(db)

	var checkout billing.CheckoutProvider
	if stripe := billing.NewStripeClientFromEnv(); stripe.SecretKey != "" {
		checkout = stripe
	} else {
		log.Warn("[Main] STRIPE_SECRET_KEY not set, checkout verification disabled")
	}
	billingSvc := billing.NewServiceFromDB(db, checkout, dispatcher, metrics).
		WithWebhookSecret(env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))

	deps := &router.Dependencies{
		Sessions:    session.NewRedisStore(rdb),
		Repos:       repos,
		Drafts:      controllers.NewDraftController(draft.NewAccumulator(repos.Draft, dispatcher, nil)),
		Styles:      controllers.NewStyleController(draft.NewStyleService(repos.Style, dispatcher)),
		Billing:     controllers.NewBillingController(billingSvc),
		Account:     controllers.NewAccountController(repos.User, repos.UserSettings),
		AdminLedger: controllers.NewAdminLedgerController(queue),
		Metrics:     reg,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: apperr.ErrorHandler,
		BodyLimit:    env.GetInt("APP_BODY_LIMIT", 4*1024*1024),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: findBasePath() + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, deps)

	return app, manager, nil
}

// findBasePath locates the project root when started from cmd/scribefox or the root.
func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			return path
		}
	}
	return "./"
}
