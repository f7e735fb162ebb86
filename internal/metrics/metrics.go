package metrics

import (
	"strconv"
	"time"

	"stall-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stallmarket",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stallmarket",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stallmarket",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	paymentsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stallmarket",
			Subsystem: "ledger",
			Name:      "payments_recorded_total",
			Help:      "Payments written to the ledger, by method and initial status.",
		},
		[]string{"method", "status"},
	)

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stallmarket",
			Subsystem: "settlement",
			Name:      "attempts_total",
			Help:      "Violation settlement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	approvals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stallmarket",
			Subsystem: "approval",
			Name:      "decisions_total",
			Help:      "Approval workflow decisions by decision and outcome.",
		},
		[]string{"decision", "outcome"},
	)

	decryptFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stallmarket",
			Subsystem: "fieldcrypt",
			Name:      "decrypt_failures_total",
			Help:      "Ciphertext-shaped fields that could not be decrypted and were returned as-is.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight,
		httpRequests,
		httpDuration,
		paymentsRecorded,
		settlements,
		approvals,
		decryptFailures,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

// Middleware records request count, latency and in-flight gauge. The route
// label uses the matched route pattern so ids do not explode cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		// the error handler has not written the response yet
		status := c.Response().StatusCode()
		if err != nil {
			status = apperr.StatusCode(err)
		}

		route := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func ObservePaymentRecorded(method, status string) {
	paymentsRecorded.WithLabelValues(method, status).Inc()
}

func ObserveSettlement(outcome string) {
	settlements.WithLabelValues(outcome).Inc()
}

func ObserveApproval(decision, outcome string) {
	approvals.WithLabelValues(decision, outcome).Inc()
}

func ObserveDecryptFailure() {
	decryptFailures.Inc()
}
