package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campus_exchange"

// Metrics owns a registry and every collector the service exports.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight  prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	ratings       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	sweeps        *prometheus.CounterVec
	sweepClosed   prometheus.Counter
	sweepWarned   prometheus.Counter
	rateLimited   prometheus.Counter
	wsConnections prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matches",
			Name:      "transitions_total",
			Help:      "Match status changes, by target status.",
		}, []string{"status"}),
		ratings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratings",
			Name:      "created_total",
			Help:      "Ratings stored, by moderation outcome.",
		}, []string{"flagged"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notifications written, by type.",
		}, []string{"type"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "sweep_runs_total",
			Help:      "Expiry sweep runs, by outcome.",
		}, []string{"success"}),
		sweepClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "requests_closed_total",
			Help:      "Need requests closed because they expired.",
		}),
		sweepWarned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "requests_warned_total",
			Help:      "Expiry warnings sent to requesters.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-user rate limiter.",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
	}
	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.transitions,
		m.ratings,
		m.notifications,
		m.sweeps,
		m.sweepClosed,
		m.sweepWarned,
		m.rateLimited,
		m.wsConnections,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. The route pattern is used as
// the path label so ids do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/metrics" {
				return next(c)
			}
			start := time.Now()
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := strings.ToUpper(c.Request().Method)
			m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) MatchTransition(status string) {
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RatingCreated(flagged bool) {
	m.ratings.WithLabelValues(strconv.FormatBool(flagged)).Inc()
}

func (m *Metrics) NotificationSent(typ string) {
	m.notifications.WithLabelValues(typ).Inc()
}

// SweepFinished records one expiry sweep run.
func (m *Metrics) SweepFinished(closed int64, warned int, err error) {
	m.sweeps.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	if closed > 0 {
		m.sweepClosed.Add(float64(closed))
	}
	if warned > 0 {
		m.sweepWarned.Add(float64(warned))
	}
}

func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// Connections is the gauge handed to the websocket handler.
func (m *Metrics) Connections() prometheus.Gauge {
	return m.wsConnections
}
