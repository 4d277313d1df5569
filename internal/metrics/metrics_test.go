package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/listings/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/listings/:id", "204"))
	assert.Equal(t, float64(3), got)
}

func TestMiddlewareRecordsHTTPErrorStatus(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/boom", "418")))
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.MatchTransition("completed")
	m.MatchTransition("completed")
	m.RatingCreated(true)
	m.NotificationSent("match")
	m.SweepFinished(3, 1, nil)
	m.SweepFinished(0, 0, errors.New("db down"))
	m.RateLimited()
	m.Connections().Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ratings.WithLabelValues("true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notifications.WithLabelValues("match")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sweeps.WithLabelValues("true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sweeps.WithLabelValues("false")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.sweepClosed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sweepWarned))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rateLimited))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.wsConnections))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.NotificationSent("system")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `campus_exchange_notifications_sent_total{type="system"} 1`))
}
