package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	pipelineTotal      *prometheus.CounterVec
	pipelineDuration   *prometheus.HistogramVec
	pipelineNoContext  *prometheus.CounterVec
	pipelineChunksUsed *prometheus.HistogramVec
	techniqueTotal     *prometheus.CounterVec
	faithfulnessScore  *prometheus.HistogramVec
	contextPrecision   *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "prag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pipelineTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Total processed queries by outcome.",
		},
		[]string{"service", "status"},
	)
	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prag",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "End-to-end query pipeline duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service"},
	)
	pipelineNoContext := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "pipeline",
			Name:      "no_context_total",
			Help:      "Total queries answered without any retrieved context.",
		},
		[]string{"service"},
	)
	pipelineChunksUsed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prag",
			Subsystem: "pipeline",
			Name:      "context_chunks",
			Help:      "Distribution of context chunks used per answered query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	techniqueTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "pipeline",
			Name:      "technique_applied_total",
			Help:      "Total applications of each pipeline technique.",
		},
		[]string{"service", "technique"},
	)
	faithfulnessScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prag",
			Subsystem: "pipeline",
			Name:      "faithfulness_score",
			Help:      "Distribution of answer faithfulness scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	contextPrecision := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prag",
			Subsystem: "pipeline",
			Name:      "context_precision",
			Help:      "Distribution of average retrieval scores across final context sets.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		pipelineTotal,
		pipelineDuration,
		pipelineNoContext,
		pipelineChunksUsed,
		techniqueTotal,
		faithfulnessScore,
		contextPrecision,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		pipelineTotal:      pipelineTotal,
		pipelineDuration:   pipelineDuration,
		pipelineNoContext:  pipelineNoContext,
		pipelineChunksUsed: pipelineChunksUsed,
		techniqueTotal:     techniqueTotal,
		faithfulnessScore:  faithfulnessScore,
		contextPrecision:   contextPrecision,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordPipelineOutcome records the aggregate result of one query pipeline run.
func (m *HTTPServerMetrics) RecordPipelineOutcome(service, status string, contextsUsed int, faithfulness, precision float64, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.pipelineTotal.WithLabelValues(service, status).Inc()
	m.pipelineDuration.WithLabelValues(service).Observe(duration.Seconds())

	if status != "success" {
		return
	}
	m.pipelineChunksUsed.WithLabelValues(service).Observe(float64(contextsUsed))
	if contextsUsed == 0 {
		m.pipelineNoContext.WithLabelValues(service).Inc()
		return
	}
	m.faithfulnessScore.WithLabelValues(service).Observe(faithfulness)
	m.contextPrecision.WithLabelValues(service).Observe(precision)
}

func (m *HTTPServerMetrics) RecordTechnique(service, technique string) {
	if technique == "" {
		return
	}
	m.techniqueTotal.WithLabelValues(service, technique).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
