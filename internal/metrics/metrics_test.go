package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/x", "GET", 200, time.Millisecond)
		m.ObserveCycle("cron", time.Second, 1, 0, time.Now())
		m.CycleRejected("manual")
		m.RecordTrade("buy", "stock")
		m.ClientConnected(1)
		m.MessageDropped()
	})
	assert.Nil(t, m.Registry())
}

func TestObserveCycle(t *testing.T) {
	m := New("papertrade")
	m.ObserveCycle("cron", 2*time.Second, 0, 0, time.Unix(1700000000, 0))
	m.ObserveCycle("manual", time.Second, 1, 2, time.Unix(1700000600, 0))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycleRuns.WithLabelValues("cron", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycleRuns.WithLabelValues("manual", "partial")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycleErrors.WithLabelValues("account")))
	assert.Equal(t, 1700000600.0, testutil.ToFloat64(m.lastCycle))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("papertrade")

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/assets/:assetId", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/assets/TCS", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCount.WithLabelValues("/api/assets/:assetId", "GET", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "papertrade_http_requests_total"))
}
