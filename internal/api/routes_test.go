package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/concept-map/backend/internal/diagram"
	"github.com/concept-map/backend/internal/metrics"
	"github.com/concept-map/backend/internal/submission"
	"github.com/concept-map/backend/internal/testutil"
)

func newTestServer(t *testing.T) (*echo.Echo, *diagram.Store) {
	t.Helper()
	collector := metrics.NewCollector("conceptmap_test")
	store := diagram.NewStore()
	hub := NewDiagramHub(store, 0, collector, nil)
	panel := submission.NewPanel(&fakeSender{graph: sampleGraph()}, store, submission.WithNotifier(hub))
	t.Cleanup(hub.Close)

	e := echo.New()
	SetupMiddleware(e, MiddlewareOptions{
		CORSOrigins:    []string{"*"},
		BodyLimit:      "10M",
		Compression:    true,
		RequestLogging: true,
		Metrics:        collector,
		Logger:         zap.NewNop(),
	})
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Generator:   &mockGenerator{graph: sampleGraph()},
		Store:       testutil.NewMockStorage(t.TempDir()),
		History:     newMockHistory(),
		Workspace:   panel,
		Diagram:     store,
		Hub:         hub,
		Metrics:     collector,
		Endpoint:    "http://127.0.0.1:5000/send-data",
		MaxFileSize: 5 * 1024 * 1024,
		Version:     "test",
	}))
	return e, store
}

func serve(e *echo.Echo, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	e, store := newTestServer(t)

	rec := serve(e, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"diagramClients":0`)

	rec = serve(e, http.MethodPost, "/send-text", echo.MIMEApplicationJSON, `{"text":"Plants produce oxygen."}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = serve(e, http.MethodPut, "/api/workspace/text", echo.MIMEApplicationJSON, `{"text":"Plants produce oxygen."}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodPost, "/api/workspace/submit", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	_, rev := store.Current()
	assert.Equal(t, uint64(1), rev)

	rec = serve(e, http.MethodGet, "/api/diagram", "", "")
	assert.Contains(t, rec.Body.String(), `"revision":1`)

	rec = serve(e, http.MethodGet, "/api/graphs/recent", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"send-text"`)

	rec = serve(e, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "conceptmap_test_http_requests_total")
	assert.Contains(t, rec.Body.String(), `conceptmap_test_submissions_total{outcome="success"} 1`)
}

func TestRoutes_StructuredErrors(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodPost, "/api/workspace/submit", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"code":"VALIDATION_ERROR","message":"validation failed for field: text"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/api/graphs/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}
