package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pratham-chat/backend/pkg/config"
	"pratham-chat/backend/pkg/di"
	"pratham-chat/backend/pkg/persist"
	"pratham-chat/backend/pkg/secrets"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Load()
	cfg.Server.Env = "test"
	cfg.Persist.Backend = config.BackendMemory
	cfg.Audio.StorageDir = t.TempDir()
	cfg.OpenAPI.SchemaPath = "../../api/openapi.yaml"

	container, err := di.New(context.Background(), cfg, nil, di.Options{
		Secrets: secrets.Static{secrets.KeyJWTSecret: "router-test-secret"},
		Backend: persist.NewMemory(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Close(context.Background()) })

	r := New(container)
	r.SetupRoutes()
	t.Cleanup(r.Close)
	return r
}

func serve(r *Router, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)
	r.Container.Health.RunChecks(context.Background())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"backend":"memory"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAPIRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := r.Container.JWTService.GenerateToken("me", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms", strings.NewReader(`{"participant":{"id":"alice","first_name":"Alice"}}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w = serve(r, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Hi Alice, let's connect!")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// schema validation runs before the handler
	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms/r1/messages?limit=-5", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(r, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `chat_commands_total{applied="true",command="create_room"} 1`)
}

func TestWebSocketRouteRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ws/rooms/r1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rooms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSchemaIsPublished(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, SchemaRoute, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	assert.Error(t, r.AddOpenAPIValidation("does-not-exist.yaml"))
}
