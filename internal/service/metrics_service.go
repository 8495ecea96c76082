package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling API.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	generationDuration prometheus.Observer
	generationSessions prometheus.Observer
	draftViolations    prometheus.Observer
	repairPasses       prometheus.Observer
	bookingConflicts   *prometheus.CounterVec
	holdsCreated       prometheus.Counter
	holdsConverted     prometheus.Counter
	holdsExpiredSwept  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_generation_duration_seconds",
		Help:    "Duration of draft schedule generation",
		Buckets: prometheus.DefBuckets,
	})

	generationSessions := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_generation_sessions",
		Help:    "Sessions placed per generated draft",
		Buckets: prometheus.LinearBuckets(0, 25, 10),
	})

	draftViolations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_draft_violations",
		Help:    "Violations reported per generated draft",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	})

	repairPasses := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_repair_passes",
		Help:    "Repair passes executed per repair run",
		Buckets: prometheus.LinearBuckets(0, 1, 5),
	})

	bookingConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_conflicts_total",
		Help: "Booking attempts rejected because the slot was taken",
	}, []string{"source"})

	holdsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holds_created_total",
		Help: "Total appointment holds placed",
	})

	holdsConverted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holds_converted_total",
		Help: "Total holds converted to booked sessions",
	})

	holdsExpiredSwept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holds_expired_swept_total",
		Help: "Expired holds removed by the background sweeper",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, generationDuration, generationSessions,
		draftViolations, repairPasses, bookingConflicts, holdsCreated, holdsConverted, holdsExpiredSwept, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		generationDuration: generationDuration,
		generationSessions: generationSessions,
		draftViolations:    draftViolations,
		repairPasses:       repairPasses,
		bookingConflicts:   bookingConflicts,
		holdsCreated:       holdsCreated,
		holdsConverted:     holdsConverted,
		holdsExpiredSwept:  holdsExpiredSwept,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveGeneration records the outcome of one draft generation run.
func (m *MetricsService) ObserveGeneration(duration time.Duration, sessions, violations int) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(duration.Seconds())
	m.generationSessions.Observe(float64(sessions))
	m.draftViolations.Observe(float64(violations))
}

// ObserveRepair records how many passes a repair run consumed.
func (m *MetricsService) ObserveRepair(passes int) {
	if m == nil {
		return
	}
	m.repairPasses.Observe(float64(passes))
}

// RecordBookingConflict counts a booking attempt lost to a taken slot.
func (m *MetricsService) RecordBookingConflict(source string) {
	if m == nil {
		return
	}
	m.bookingConflicts.WithLabelValues(source).Inc()
}

// RecordHoldCreated counts a newly placed hold.
func (m *MetricsService) RecordHoldCreated() {
	if m == nil {
		return
	}
	m.holdsCreated.Inc()
}

// RecordHoldConverted counts a hold turned into a session.
func (m *MetricsService) RecordHoldConverted() {
	if m == nil {
		return
	}
	m.holdsConverted.Inc()
}

// RecordHoldsSwept counts expired holds removed by the sweeper.
func (m *MetricsService) RecordHoldsSwept(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.holdsExpiredSwept.Add(float64(count))
}
