package controllers

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Scribefox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/Scribefox/internal/pkg/middleware"
)

type mockJobStore struct {
	mock.Mock
}

func (m *mockJobStore) ListFailedJobs(ctx context.Context, limit int64) ([]*jobqueue.Job, error) {
	args := m.Called(ctx, limit)
	jobs, _ := args.Get(0).([]*jobqueue.Job)
	return jobs, args.Error(1)
}

func (m *mockJobStore) RetryFailedJobs(ctx context.Context, ids []string) (int, error) {
	args := m.Called(ctx, ids)
	return args.Int(0), args.Error(1)
}

func (m *mockJobStore) GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(map[jobqueue.JobStatus]int64)
	return stats, args.Error(1)
}

func newAdminApp(store FailedJobStore) *fiber.App {
	alc := NewAdminLedgerController(store)
	app := newTestApp()
	g := app.Group("/admin/api/ledger-sync", middleware.RequireAdmin)
	g.Get("/failed", alc.HandleListFailed)
	g.Post("/retry", alc.HandleRetry)
	return app
}

func TestAdminLedgerController_Access(t *testing.T) {
	app := newAdminApp(&mockJobStore{})

	r := doJSON(t, app, "GET", "/admin/api/ledger-sync/failed", 0, nil)
	assert.Equal(t, fiber.StatusUnauthorized, r.Status)

	r = doJSON(t, app, "GET", "/admin/api/ledger-sync/failed", 7, nil)
	assert.Equal(t, fiber.StatusForbidden, r.Status)
}

func TestAdminLedgerController_ListAndRetry(t *testing.T) {
	store := &mockJobStore{}
	failed := []*jobqueue.Job{{ID: "job-1", Type: jobqueue.JobTypeLedgerSync, Status: jobqueue.JobStatusFailed, ErrorMsg: "sheets: 503"}}
	store.On("ListFailedJobs", mock.Anything, int64(10)).Return(failed, nil)
	store.On("GetJobStats", mock.Anything).Return(map[jobqueue.JobStatus]int64{jobqueue.JobStatusFailed: 1}, nil)
	store.On("RetryFailedJobs", mock.Anything, []string{"job-1"}).Return(1, nil)
	store.On("RetryFailedJobs", mock.Anything, []string(nil)).Return(0, errors.New("redis down"))
	app := newAdminApp(store)

	req := httptest.NewRequest("GET", "/admin/api/ledger-sync/failed?limit=10", nil)
	req.Header.Set("X-Test-User", "1")
	req.Header.Set("X-Test-Admin", "1")
	r := send(t, app, req)
	require.Equal(t, fiber.StatusOK, r.Status, string(r.Raw))
	jobs := r.Body["jobs"].([]interface{})
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].(map[string]interface{})["id"])
	assert.Equal(t, float64(1), r.Body["stats"].(map[string]interface{})["failed"])

	req = httptest.NewRequest("POST", "/admin/api/ledger-sync/retry", strings.NewReader(`{"ids":["job-1"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", "1")
	req.Header.Set("X-Test-Admin", "1")
	r = send(t, app, req)
	require.Equal(t, fiber.StatusOK, r.Status, string(r.Raw))
	assert.Equal(t, float64(1), r.Body["requeued"])

	req = httptest.NewRequest("POST", "/admin/api/ledger-sync/retry", nil)
	req.Header.Set("X-Test-User", "1")
	req.Header.Set("X-Test-Admin", "1")
	r = send(t, app, req)
	assert.Equal(t, fiber.StatusServiceUnavailable, r.Status)

	store.AssertExpectations(t)
}
