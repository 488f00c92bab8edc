package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "camerakingdom"

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomePartial = "partial"
	OutcomeFatal   = "fatal"
)

type Metrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	LedgerOps     *prometheus.CounterVec
	Checkouts     *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	Compensations *prometheus.CounterVec
	registry      prometheus.Gatherer
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		LedgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Stock ledger apply calls by direction and outcome.",
		}, []string{"direction", "outcome"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "orders_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Order status transitions by target status and outcome.",
		}, []string{"to", "outcome"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "compensations_total",
			Help:      "Saga compensations by operation and outcome.",
		}, []string{"op", "outcome"}),
		registry: reg,
	}

	reg.MustRegister(m.Requests, m.LatencyMS, m.LedgerOps, m.Checkouts, m.Transitions, m.Compensations)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// The recorders below are safe on a nil *Metrics so libraries can run without
// a registry.

func (m *Metrics) LedgerOp(direction, outcome string) {
	if m == nil {
		return
	}
	m.LedgerOps.WithLabelValues(direction, outcome).Inc()
}

func (m *Metrics) Checkout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transition(to, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to, outcome).Inc()
}

func (m *Metrics) Compensation(op, outcome string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(op, outcome).Inc()
}
