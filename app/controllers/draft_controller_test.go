package controllers

import (
	"context"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/draft"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
	"github.com/ManuelReschke/Scribefox/internal/pkg/middleware"
	"github.com/ManuelReschke/Scribefox/internal/pkg/testdb"
)

type dispatchLog struct {
	mu    sync.Mutex
	tasks []ledgersync.Task
}

func (d *dispatchLog) Dispatch(_ context.Context, task ledgersync.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *dispatchLog) Tasks() []ledgersync.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ledgersync.Task(nil), d.tasks...)
}

func newDraftApp(t *testing.T) (*fiber.App, *dispatchLog) {
	db := testdb.Open(t)
	tasks := &dispatchLog{}
	dc := NewDraftController(draft.NewAccumulator(repository.NewDraftRepository(db), tasks, nil))

	app := newTestApp()
	g := app.Group("/api/v1/drafts", middleware.RequireAuth)
	g.Get("/:kind", dc.HandleGetDraft)
	g.Post("/:kind/steps/:step", dc.HandleSaveStep)
	g.Post("/:kind/complete", dc.HandleComplete)
	return app, tasks
}

func TestDraftController_StyleWizard(t *testing.T) {
	app, tasks := newDraftApp(t)

	r := doJSON(t, app, "POST", "/api/v1/drafts/article-style/steps/1", 7, fiber.Map{"samples": []string{"A", "B"}})
	require.Equal(t, fiber.StatusCreated, r.Status, string(r.Raw))
	id, _ := r.Body["draft_id"].(string)
	require.NotEmpty(t, id)

	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/steps/2", 7, fiber.Map{"draft_id": id, "topics": []string{"x"}})
	require.Equal(t, fiber.StatusOK, r.Status, string(r.Raw))
	assert.Equal(t, id, r.Body["draft_id"])

	// resubmitting step 1 replaces samples and keeps topics
	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/steps/1", 7, fiber.Map{"draft_id": id, "samples": []string{"C"}})
	require.Equal(t, fiber.StatusOK, r.Status, string(r.Raw))

	r = doJSON(t, app, "GET", "/api/v1/drafts/article-style", 7, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	d := r.Body["draft"].(map[string]interface{})
	assert.Equal(t, []interface{}{"C"}, d["samples"])
	assert.Equal(t, []interface{}{"x"}, d["topics"])

	// topics belong to step 2; step 3 ignores them
	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/steps/3", 7, fiber.Map{"draft_id": id, "name": "Tech", "topics": []string{"ignored"}})
	require.Equal(t, fiber.StatusOK, r.Status, string(r.Raw))

	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/complete", 7, fiber.Map{"draft_id": id})
	require.Equal(t, fiber.StatusCreated, r.Status, string(r.Raw))
	entity := r.Body["entity"].(map[string]interface{})
	assert.Equal(t, "style", entity["type"])
	value := entity["value"].(map[string]interface{})
	assert.Equal(t, []interface{}{"x"}, value["topics"])

	require.Len(t, tasks.Tasks(), 1)
	assert.Equal(t, ledgersync.OpCreate, tasks.Tasks()[0].Op)

	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/complete", 7, fiber.Map{"draft_id": id})
	assert.Equal(t, fiber.StatusConflict, r.Status)

	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/steps/3", 7, fiber.Map{"draft_id": id, "name": "Again"})
	assert.Equal(t, fiber.StatusConflict, r.Status)

	r = doJSON(t, app, "GET", "/api/v1/drafts/article-style", 7, nil)
	assert.Equal(t, fiber.StatusNotFound, r.Status)
}

func TestDraftController_Validation(t *testing.T) {
	app, _ := newDraftApp(t)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		fields []interface{}
	}{
		{
			name:   "later step needs draft id",
			path:   "/api/v1/drafts/article-style/steps/2",
			body:   fiber.Map{"topics": []string{"x"}},
			status: fiber.StatusUnprocessableEntity,
			fields: []interface{}{"draft_id"},
		},
		{
			name:   "blank samples",
			path:   "/api/v1/drafts/article-style/steps/1",
			body:   fiber.Map{"samples": []string{" ", ""}},
			status: fiber.StatusUnprocessableEntity,
			fields: []interface{}{"samples"},
		},
		{
			name:   "onboarding contact step",
			path:   "/api/v1/drafts/onboarding/steps/1",
			body:   fiber.Map{"name": "Ann", "email": "not-an-email"},
			status: fiber.StatusUnprocessableEntity,
			fields: []interface{}{"email", "language"},
		},
		{
			name:   "unknown step",
			path:   "/api/v1/drafts/onboarding/steps/9",
			body:   fiber.Map{},
			status: fiber.StatusUnprocessableEntity,
			fields: []interface{}{"step"},
		},
		{
			name:   "unknown kind",
			path:   "/api/v1/drafts/recipes/steps/1",
			body:   fiber.Map{},
			status: fiber.StatusNotFound,
		},
		{
			name:   "malformed body",
			path:   "/api/v1/drafts/article-style/steps/1",
			body:   []byte(`{"samples":`),
			status: fiber.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := doJSON(t, app, "POST", tc.path, 7, tc.body)
			assert.Equal(t, tc.status, r.Status, string(r.Raw))
			if tc.fields != nil {
				assert.Equal(t, tc.fields, fieldsOf(r))
			}
		})
	}
}

func TestDraftController_OnboardingCompletion(t *testing.T) {
	app, _ := newDraftApp(t)

	r := doJSON(t, app, "POST", "/api/v1/drafts/onboarding/steps/1", 3, fiber.Map{"name": "Ann", "email": "Ann@Example.com", "language": "DE"})
	require.Equal(t, fiber.StatusCreated, r.Status, string(r.Raw))
	id := r.Body["draft_id"].(string)

	r = doJSON(t, app, "POST", "/api/v1/drafts/onboarding/complete", 3, fiber.Map{"draft_id": id})
	require.Equal(t, fiber.StatusUnprocessableEntity, r.Status)
	assert.Equal(t, []interface{}{"delivery_days", "samples"}, fieldsOf(r))

	r = doJSON(t, app, "POST", "/api/v1/drafts/onboarding/steps/2", 3, fiber.Map{"draft_id": id, "delivery_days": []string{"FRI", "mon"}})
	require.Equal(t, fiber.StatusOK, r.Status, string(r.Raw))
	r = doJSON(t, app, "POST", "/api/v1/drafts/onboarding/steps/3", 3, fiber.Map{"draft_id": id, "samples": []string{"hello"}})
	require.Equal(t, fiber.StatusOK, r.Status, string(r.Raw))

	// the route kind must match the draft
	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/complete", 3, fiber.Map{"draft_id": id})
	assert.Equal(t, fiber.StatusUnprocessableEntity, r.Status)

	r = doJSON(t, app, "POST", "/api/v1/drafts/onboarding/complete", 3, fiber.Map{"draft_id": id})
	require.Equal(t, fiber.StatusCreated, r.Status, string(r.Raw))
	value := r.Body["entity"].(map[string]interface{})["value"].(map[string]interface{})
	assert.Equal(t, "ann@example.com", value["email"])
	assert.Equal(t, []interface{}{"mon", "fri"}, value["delivery_days"])
}

func TestDraftController_Ownership(t *testing.T) {
	app, _ := newDraftApp(t)

	r := doJSON(t, app, "POST", "/api/v1/drafts/article-style/steps/1", 7, fiber.Map{"samples": []string{"A"}})
	require.Equal(t, fiber.StatusCreated, r.Status)
	id := r.Body["draft_id"].(string)

	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/steps/2", 8, fiber.Map{"draft_id": id, "topics": []string{"x"}})
	assert.Equal(t, fiber.StatusForbidden, r.Status)

	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/steps/2", 7, fiber.Map{"draft_id": "00000000-0000-0000-0000-000000000000", "topics": []string{"x"}})
	assert.Equal(t, fiber.StatusNotFound, r.Status)

	r = doJSON(t, app, "POST", "/api/v1/drafts/article-style/steps/1", 0, fiber.Map{"samples": []string{"A"}})
	assert.Equal(t, fiber.StatusUnauthorized, r.Status)
	assert.Equal(t, "unauthorized", r.Body["error"])
}
