package internal

import (
	"bakso/internal/controllers"
	"bakso/internal/structures"
	"bakso/internal/testutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestHandler(metricsEnabled bool) (http.Handler, *testutil.MockMetrics) {
	ac := controllers.NewApiController(&routeTestLogger{}, &routeTestMockService{})
	conf := &structures.Config{Metrics: structures.MetricsConfig{Enabled: metricsEnabled}}
	metrics := testutil.NewMockMetrics()
	hc := controllers.NewHealthController(&routeTestMockService{})
	return NewHandler(hc, conf, &routeTestLogger{}, InitRoutes(ac, conf), metrics), metrics
}

func TestNewHandler_HealthBypassesMiddleware(t *testing.T) {
	h, metrics := newTestHandler(false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, metrics.Requests)
}

func TestNewHandler_InstrumentsAPI(t *testing.T) {
	h, metrics := newTestHandler(false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nearby?id=ghost", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 1, metrics.Requests["/nearby"])
}

func TestNewHandler_MetricsEndpoint(t *testing.T) {
	disabled, _ := newTestHandler(false)
	rr := httptest.NewRecorder()
	disabled.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	enabled, _ := newTestHandler(true)
	rr = httptest.NewRecorder()
	enabled.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
