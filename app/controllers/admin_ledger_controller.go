package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/jobqueue"
)

// FailedJobStore is the part of the job queue the admin ledger sync endpoints use
type FailedJobStore interface {
	ListFailedJobs(ctx context.Context, limit int64) ([]*jobqueue.Job, error)
	RetryFailedJobs(ctx context.Context, ids []string) (int, error)
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
}

// AdminLedgerController lets admins inspect and re-queue failed ledger sync jobs
type AdminLedgerController struct {
	jobs FailedJobStore
}

// NewAdminLedgerController creates a new admin ledger controller
func NewAdminLedgerController(jobs FailedJobStore) *AdminLedgerController {
	return &AdminLedgerController{jobs: jobs}
}

// HandleListFailed lists failed sync jobs, newest first.
func (alc *AdminLedgerController) HandleListFailed(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	ctx := c.UserContext()
	jobs, err := alc.jobs.ListFailedJobs(ctx, int64(limit))
	if err != nil {
		return apperr.Unavailable("controllers.ListFailed", err)
	}
	stats, err := alc.jobs.GetJobStats(ctx)
	if err != nil {
		log.Warnf("[AdminLedger] failed to load job stats: %v", err)
		stats = map[jobqueue.JobStatus]int64{}
	}
	return c.JSON(fiber.Map{"jobs": jobs, "stats": stats})
}

type retryRequest struct {
	IDs []string `json:"ids"`
}

// HandleRetry re-queues the given failed jobs, or all of them when ids is empty.
func (alc *AdminLedgerController) HandleRetry(c *fiber.Ctx) error {
	var req retryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	n, err := alc.jobs.RetryFailedJobs(c.UserContext(), req.IDs)
	if err != nil {
		return apperr.Unavailable("controllers.RetryFailed", err)
	}
	log.Infof("[AdminLedger] re-queued %d failed ledger sync jobs", n)
	return c.JSON(fiber.Map{"requeued": n})
}
