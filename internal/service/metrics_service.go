package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// submission pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	submissionsTotal    prometheus.Counter
	ocrFailuresTotal    prometheus.Counter
	matcherCallDuration prometheus.Histogram
	matcherFailures     prometheus.Counter
	mappingsCreated     prometheus.Counter
	suggestionsCreated  prometheus.Counter
	overridesTotal      prometheus.Counter
	resweepDuration     prometheus.Histogram
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

	submissionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Total application submissions processed",
	})

	ocrFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ocr_failures_total",
		Help: "Total OCR calls that failed or returned non-2xx",
	})

	matcherCallDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matcher_call_duration_seconds",
		Help:    "Duration of batch matcher calls",
		Buckets: prometheus.DefBuckets,
	})

	matcherFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_failures_total",
		Help: "Total matcher calls that failed",
	})

	mappingsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subject_mappings_created_total",
		Help: "Total auto mappings persisted",
	})

	suggestionsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapping_suggestions_created_total",
		Help: "Total mapping suggestions recorded",
	})

	overridesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapping_overrides_total",
		Help: "Total admin mapping overrides",
	})

	resweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "acceptance_resweep_duration_seconds",
		Help:    "Duration of full acceptance re-sweeps after threshold changes",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissionsTotal, ocrFailuresTotal,
		matcherCallDuration, matcherFailures, mappingsCreated, suggestionsCreated,
		overridesTotal, resweepDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		submissionsTotal:    submissionsTotal,
		ocrFailuresTotal:    ocrFailuresTotal,
		matcherCallDuration: matcherCallDuration,
		matcherFailures:     matcherFailures,
		mappingsCreated:     mappingsCreated,
		suggestionsCreated:  suggestionsCreated,
		overridesTotal:      overridesTotal,
		resweepDuration:     resweepDuration,
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

// RecordSubmission counts one processed submission.
func (m *MetricsService) RecordSubmission() {
	if m != nil {
		m.submissionsTotal.Inc()
	}
}

// RecordOCRFailure counts one failed OCR call.
func (m *MetricsService) RecordOCRFailure() {
	if m != nil {
		m.ocrFailuresTotal.Inc()
	}
}

// ObserveMatcherCall records one batch matcher call.
func (m *MetricsService) ObserveMatcherCall(duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.matcherCallDuration.Observe(duration.Seconds())
	if failed {
		m.matcherFailures.Inc()
	}
}

// RecordMappingCreated counts one persisted auto mapping.
func (m *MetricsService) RecordMappingCreated() {
	if m != nil {
		m.mappingsCreated.Inc()
	}
}

// RecordSuggestionCreated counts one recorded suggestion.
func (m *MetricsService) RecordSuggestionCreated() {
	if m != nil {
		m.suggestionsCreated.Inc()
	}
}

// RecordOverride counts one admin mapping override.
func (m *MetricsService) RecordOverride() {
	if m != nil {
		m.overridesTotal.Inc()
	}
}

// ObserveResweep records the duration of a full acceptance re-sweep.
func (m *MetricsService) ObserveResweep(duration time.Duration) {
	if m != nil {
		m.resweepDuration.Observe(duration.Seconds())
	}
}
