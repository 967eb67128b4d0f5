package controllers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/middleware"
	"github.com/ManuelReschke/Scribefox/internal/pkg/testdb"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2024, 5, 1, 12, 34, 56, 0, time.Local)
	formatted := formatTimePtr(&now)
	assert.IsType(t, "", formatted)

	expected := now.UTC().Format(time.RFC3339)
	assert.Equal(t, expected, formatted)
}

func TestAccountController_APIKeyLifecycle(t *testing.T) {
	db := testdb.Open(t)
	user := &models.User{Name: "ann", Email: "ann@example.com", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.UserSettings{UserID: user.ID, Plan: "growth", ArticlesPerPeriod: 12}).Error)

	repos := repository.NewRepositories(db)
	ac := NewAccountController(repos.User, repos.UserSettings)

	// no session store: requests are identified by API key only
	app := newTestApp()
	app.Use(middleware.UserContext(nil, repos.User, repos.UserSettings))
	g := app.Group("/api/v1/user", middleware.RequireAuth)
	g.Get("/account", ac.HandleGetUserAccount)
	g.Post("/api-key", ac.HandleRotateAPIKey)
	g.Delete("/api-key", ac.HandleRevokeAPIKey)

	r := doJSON(t, app, "POST", "/api/v1/user/api-key", 0, nil)
	require.Equal(t, fiber.StatusUnauthorized, r.Status)

	// bootstrap a key directly, then use it
	settings, err := repos.UserSettings.GetOrCreate(t.Context(), user.ID)
	require.NoError(t, err)
	raw, err := settings.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, repos.UserSettings.Save(t.Context(), settings))

	req := httptest.NewRequest("GET", "/api/v1/user/account", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	r = send(t, app, req)
	require.Equal(t, fiber.StatusOK, r.Status, string(r.Raw))
	assert.Equal(t, "ann", r.Body["username"])
	assert.Equal(t, "api_key", r.Body["auth_source"])
	ent := r.Body["entitlements"].(map[string]interface{})
	assert.Equal(t, "growth", ent["plan"])
	assert.Equal(t, float64(12), ent["articles_per_period"])

	req = httptest.NewRequest("POST", "/api/v1/user/api-key", nil)
	req.Header.Set("X-API-Key", raw)
	r = send(t, app, req)
	require.Equal(t, fiber.StatusCreated, r.Status, string(r.Raw))
	rotated := r.Body["api_key"].(string)
	assert.NotEqual(t, raw, rotated)

	// the old key stops working after rotation
	req = httptest.NewRequest("GET", "/api/v1/user/account", nil)
	req.Header.Set("X-API-Key", raw)
	r = send(t, app, req)
	assert.Equal(t, fiber.StatusUnauthorized, r.Status)

	req = httptest.NewRequest("DELETE", "/api/v1/user/api-key", nil)
	req.Header.Set("X-API-Key", rotated)
	r = send(t, app, req)
	assert.Equal(t, fiber.StatusNoContent, r.Status)

	req = httptest.NewRequest("GET", "/api/v1/user/account", nil)
	req.Header.Set("X-API-Key", rotated)
	r = send(t, app, req)
	assert.Equal(t, fiber.StatusUnauthorized, r.Status)
}
