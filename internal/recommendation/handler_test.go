package recommendation

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dustin/coursemate-backend/config"
	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/pkg/logger"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.New())
	NewHandler(svc, logger.NewNop()).RegisterRoutes(r.Group("/api/v1"), nil)
	return r
}

func do(t *testing.T, r http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) ListResponse {
	t.Helper()
	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func responseIDs(resp ListResponse) []int64 {
	out := make([]int64, len(resp.Items))
	for i, it := range resp.Items {
		out[i] = it.ID
	}
	return out
}

func TestHandler_GetSimilar(t *testing.T) {
	svc := newTestService(t, buildStore(t, movieCatalog(), movieVectors(), 3), nil, defaultOptions(t))
	r := newRouter(svc)

	w := do(t, r, http.MethodGet, "/api/v1/recommendations?course_id=1&limit=2&exclude=4", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeList(t, w)
	assert.Equal(t, []int64{7, 6}, responseIDs(resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, ModeSimilar, resp.Mode)
	assert.Empty(t, resp.Fallback)
	assert.False(t, resp.Degraded)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, w.Header().Get("X-Request-ID"), resp.RequestID)
	assert.False(t, resp.GeneratedAt.IsZero())
}

func TestHandler_GetSimilar_UnknownSeedServesSample(t *testing.T) {
	svc := newTestService(t, buildStore(t, movieCatalog(), movieVectors(), 3), nil, defaultOptions(t))
	r := newRouter(svc)

	w := do(t, r, http.MethodGet, "/api/v1/recommendations?movie_id=999&limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeList(t, w)
	assert.Equal(t, FallbackRandomSample, resp.Fallback)
	assert.Equal(t, 3, resp.Count)
}

func TestHandler_GetSimilar_WithoutVectors(t *testing.T) {
	svc := newTestService(t, buildStore(t, movieCatalog(), nil, 0), nil, defaultOptions(t))
	r := newRouter(svc)

	w := do(t, r, http.MethodGet, "/api/v1/recommendations?item_id=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeList(t, w)
	assert.Equal(t, FallbackRuleBased, resp.Fallback)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []int64{7, 6, 4}, responseIDs(resp))
}

func TestHandler_BadRequests(t *testing.T) {
	svc := newTestService(t, buildStore(t, movieCatalog(), movieVectors(), 3), nil, defaultOptions(t))
	r := newRouter(svc)

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"limit zero", http.MethodGet, "/api/v1/recommendations?course_id=1&limit=0", ""},
		{"limit too large", http.MethodGet, "/api/v1/trending?limit=51", ""},
		{"limit not a number", http.MethodGet, "/api/v1/top-rated?limit=ten", ""},
		{"missing seed", http.MethodGet, "/api/v1/recommendations", ""},
		{"bad exclude", http.MethodGet, "/api/v1/recommendations?course_id=1&exclude=x", ""},
		{"missing query", http.MethodGet, "/api/v1/search", ""},
		{"blank query", http.MethodGet, "/api/v1/search?query=%20%20", ""},
		{"unknown budget", http.MethodPost, "/api/v1/recommendations/user", `{"mood":"happy","budget":"cheap"}`},
		{"profile limit", http.MethodPost, "/api/v1/recommendations/user", `{"mood":"happy","limit":51}`},
		{"broken json", http.MethodPost, "/api/v1/recommendations/user", `{"mood":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.body != "" {
				body = []byte(tt.body)
			}
			w := do(t, r, tt.method, tt.target, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestHandler_Search(t *testing.T) {
	svc := newTestService(t, buildStore(t, movieCatalog(), nil, 0), nil, defaultOptions(t))
	r := newRouter(svc)

	w := do(t, r, http.MethodGet, "/api/v1/search?query=Notebook", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{1}, responseIDs(decodeList(t, w)))

	w = do(t, r, http.MethodGet, "/api/v1/search?q=laugh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{2}, responseIDs(decodeList(t, w)))
}

func TestHandler_Profile(t *testing.T) {
	svc := newTestService(t, buildStore(t, movieCatalog(), nil, 0), nil, defaultOptions(t))
	r := newRouter(svc)

	body := []byte(`{"mood":"romantic","age":10,"liked":[4],"language":"en"}`)
	w := do(t, r, http.MethodPost, "/api/v1/recommendations/user", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeList(t, w)
	assert.Equal(t, ModeProfile, resp.Mode)
	assert.Equal(t, []int64{7, 4, 1}, responseIDs(resp))

	body = []byte(`{"mood":"romantic","language":["fr","de"]}`)
	w = do(t, r, http.MethodPost, "/api/v1/recommendations/user", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{6}, responseIDs(decodeList(t, w)))
}

func TestHandler_Listings(t *testing.T) {
	svc := newTestService(t, buildStore(t, movieCatalog(), nil, 0), nil, defaultOptions(t))
	r := newRouter(svc)

	w := do(t, r, http.MethodGet, "/api/v1/trending?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{5}, responseIDs(decodeList(t, w)))

	w = do(t, r, http.MethodGet, "/api/v1/trending?limit=2&safe_mode=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{2, 3}, responseIDs(decodeList(t, w)))

	w = do(t, r, http.MethodGet, "/api/v1/top-rated?language=fr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{6}, responseIDs(decodeList(t, w)))
}

func TestHandler_CategoriesAndStatus(t *testing.T) {
	svc := newTestService(t, buildStore(t, movieCatalog(), nil, 0), nil, defaultOptions(t))
	r := newRouter(svc)

	w := do(t, r, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cats struct {
		Categories []catalog.CategoryCount `json:"categories"`
		Count      int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cats))
	assert.Equal(t, len(cats.Categories), cats.Count)
	assert.Equal(t, catalog.CategoryCount{Name: "Romance", Count: 3}, cats.Categories[0])

	w = do(t, r, http.MethodGet, "/api/v1/model/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 7, status.CatalogItems)
	assert.True(t, status.Degraded)
}

func TestHandler_AuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestService(t, buildStore(t, movieCatalog(), nil, 0), nil, defaultOptions(t))
	r := gin.New()
	deny := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
	}
	NewHandler(svc, logger.NewNop()).RegisterRoutes(r, deny)

	w := do(t, r, http.MethodGet, "/trending", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// mockService fails every ranking call with err
type mockService struct {
	err error
}

func (m *mockService) BySeed(ctx context.Context, req SeedRequest) (*Result, error) {
	return nil, m.err
}

func (m *mockService) RandomSample(ctx context.Context, req ListRequest) (*Result, error) {
	return nil, m.err
}

func (m *mockService) ByQuery(ctx context.Context, query string, limit int) (*Result, error) {
	return nil, m.err
}

func (m *mockService) ByProfile(ctx context.Context, p Profile) (*Result, error) {
	return nil, m.err
}

func (m *mockService) TopRated(ctx context.Context, req ListRequest) (*Result, error) {
	return nil, m.err
}

func (m *mockService) Trending(ctx context.Context, req ListRequest) (*Result, error) {
	return nil, m.err
}

func (m *mockService) Categories() []catalog.CategoryCount { return nil }

func (m *mockService) Status() Status { return Status{} }

func (m *mockService) Responses(ctx context.Context, res *Result) []ItemResponse { return nil }

func (m *mockService) RequestTimeout() time.Duration { return time.Second }

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"malformed", ErrMalformedQuery, http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&mockService{err: tt.err})

			w := do(t, r, http.MethodGet, "/api/v1/trending", nil)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestHandler_ErrorLogCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logDir := t.TempDir()
	log, err := logger.NewLogger(&config.LoggingConfig{Level: "info", Format: "json", ServiceName: "handler-test", Dir: logDir})
	require.NoError(t, err)

	r := gin.New()
	r.Use(requestid.New())
	NewHandler(&mockService{err: errors.New("boom")}, log).RegisterRoutes(r.Group("/api/v1"), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trending", nil)
	req.Header.Set("X-Request-ID", "req-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	files, err := filepath.Glob(filepath.Join(logDir, "handler-test-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), `"request_id":"req-7"`)
	assert.Contains(t, string(content), "Request failed: boom")
	assert.NotContains(t, string(content), "Request req-7")
}

func TestHandler_NotFoundSampleFailure(t *testing.T) {
	r := newRouter(&mockService{err: catalog.ErrNotFound})

	w := do(t, r, http.MethodGet, "/api/v1/recommendations?course_id=3", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "not found")
}
