package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// These requests are rejected before any collection is touched.
func TestValidationErrors(t *testing.T) {
	h := newTestApp(t, nil).routes()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		msg    string
	}{
		{"task without title", http.MethodPost, "/api/tasks", map[string]any{"description": "x"}, 400, "Missing title"},
		{"blank task title", http.MethodPost, "/api/tasks", map[string]any{"title": "   "}, 400, "Missing title"},
		{"task patch without status", http.MethodPatch, "/api/tasks", map[string]any{"id": "abc"}, 400, "Missing id or status"},
		{"task patch without id", http.MethodPatch, "/api/tasks", map[string]any{"status": "completed"}, 400, "Missing id or status"},
		{"task patch bad status", http.MethodPatch, "/api/tasks", map[string]any{"id": "abc", "status": "done"}, 400, "Invalid status"},
		{"task patch bad id", http.MethodPatch, "/api/tasks", map[string]any{"id": "abc", "status": "completed"}, 400, "Invalid id"},
		{"inventory without name", http.MethodPost, "/api/inventory", map[string]any{"quantityKg": 3}, 400, "Missing name"},
		{"inventory bad quantity", http.MethodPost, "/api/inventory", map[string]any{"name": "Urea", "quantityKg": "lots"}, 400, "Invalid quantityKg"},
		{"inventory negative quantity", http.MethodPost, "/api/inventory", map[string]any{"name": "Urea", "quantityKg": -1}, 400, "Invalid quantityKg"},
		{"inventory patch without id", http.MethodPatch, "/api/inventory", map[string]any{"quantityKg": 3}, 400, "Missing id"},
		{"inventory patch bad id", http.MethodPatch, "/api/inventory", map[string]any{"id": "zz", "quantityKg": 3}, 400, "Invalid id"},
		{"inventory patch without quantity", http.MethodPatch, "/api/inventory", map[string]any{"id": "64b7f0c2a1b2c3d4e5f60718"}, 400, "Invalid quantityKg"},
		{"inventory patch null quantity", http.MethodPatch, "/api/inventory", map[string]any{"id": "64b7f0c2a1b2c3d4e5f60718", "quantityKg": nil}, 400, "Invalid quantityKg"},
		{"inventory patch bad quantity", http.MethodPatch, "/api/inventory", map[string]any{"id": "64b7f0c2a1b2c3d4e5f60718", "quantityKg": "some"}, 400, "Invalid quantityKg"},
		{"reading missing fields", http.MethodPost, "/api/sensor", map[string]any{"nitrogen": 20, "phosphorus": 10}, 400, "Missing required fields"},
		{"reading bad json", http.MethodPost, "/api/sensor", "{", 400, "Missing required fields"},
		{"farm bad area", http.MethodPost, "/api/farm", map[string]any{"areaHa": "big"}, 400, "Invalid areaHa"},
		{"farm zero area", http.MethodPost, "/api/farm", map[string]any{"areaHa": 0}, 400, "Invalid areaHa"},
		{"register without password", http.MethodPost, "/api/auth/register", map[string]any{"username": "a", "email": "a@b.c"}, 400, "username, email, password are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, decode(t, rec)["error"])
		})
	}
}

func TestAuthRequiredGuardsWrites(t *testing.T) {
	a := newTestApp(t, nil)
	a.cfg.AuthRequired = true
	h := a.routes()

	rec := do(t, h, http.MethodPost, "/api/tasks", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing bearer token", decode(t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/api/tasks", map[string]any{}, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := signJWT(a.cfg.JWTSecret, primitive.NewObjectID())
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/api/tasks", map[string]any{}, "Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing title", decode(t, rec)["error"])
}

func TestAuthOptionalByDefault(t *testing.T) {
	h := newTestApp(t, nil).routes()
	rec := do(t, h, http.MethodPost, "/api/tasks", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// /me always needs a token
	rec = do(t, h, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInfraRoutes(t *testing.T) {
	h := newTestApp(t, nil).routes()

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])

	rec = do(t, h, http.MethodGet, "/api/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/yaml")
	assert.Contains(t, rec.Body.String(), "/api/predict:")
}
