package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/ping/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/7", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/ping/:id", "418")))
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Recommendation("seed", "")
	m.Recommendation("seed", "rule_based")
	m.CacheResult(true)
	m.CacheResult(false)
	m.CacheResult(false)
	m.Upstream("timeout")
	m.CatalogLoaded(42, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.recommendations.WithLabelValues("seed", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recommendations.WithLabelValues("seed", "rule_based")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.enrichCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enrichUpstream.WithLabelValues("timeout")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.catalogItems))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vectorsLoaded))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Recommendation("query", "")
		m.CacheResult(true)
		m.Upstream("ok")
		m.CatalogLoaded(1, false)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CatalogLoaded(3, false)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "coursemate_catalog_items 3"))
}
