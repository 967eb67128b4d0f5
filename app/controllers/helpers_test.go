package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/usercontext"
)

// newTestApp builds an app whose callers are identified by the X-Test-User
// and X-Test-Admin headers.
func newTestApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		if id, err := strconv.Atoi(c.Get("X-Test-User")); err == nil && id > 0 {
			usercontext.Set(c, usercontext.UserContext{
				UserID:     uint(id),
				IsLoggedIn: true,
				IsAdmin:    c.Get("X-Test-Admin") == "1",
				Source:     usercontext.SourceSession,
			})
		}
		return c.Next()
	})
	return app
}

type testResponse struct {
	Status int
	Body   map[string]interface{}
	Raw    []byte
}

func doJSON(t *testing.T, app *fiber.App, method, path string, userID int, body interface{}) testResponse {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("X-Test-User", strconv.Itoa(userID))
	}
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) testResponse {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := testResponse{Status: resp.StatusCode, Raw: raw}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.Body)
	}
	return out
}

func fieldsOf(r testResponse) []interface{} {
	fields, _ := r.Body["fields"].([]interface{})
	return fields
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
