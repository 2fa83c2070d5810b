package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/linnemanlabs-cms/internal/version"
)

// ServerMetrics owns a private registry. It satisfies content.Recorder and
// upload.Recorder so the stores never import prometheus.
type ServerMetrics struct {
	reg                    *prometheus.Registry
	handler                http.Handler
	inflight               prometheus.Gauge
	reqTotal               *prometheus.CounterVec
	reqDur                 *prometheus.HistogramVec
	respBytes              *prometheus.HistogramVec
	errorsTotal            *prometheus.CounterVec
	httpPanicTotal         prometheus.Counter
	buildInfo              *prometheus.GaugeVec
	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter
	profilingActive        prometheus.Gauge

	contentFieldsWritten *prometheus.CounterVec
	contentKeysSkipped   *prometheus.CounterVec
	contentPageReads     prometheus.Counter
	authAttempts         *prometheus.CounterVec
	uploadsTotal         *prometheus.CounterVec
	uploadBytes          prometheus.Histogram
}

// New returns a fresh registry with the runtime collectors, HTTP metrics and
// content metrics. Labels stay low-cardinality: route patterns, never raw
// paths, and page names only for the write counter.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: prometheus.ExponentialBuckets(256, 4, 9),
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times rate limiter capacity reached",
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		contentFieldsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_content_fields_written_total",
			Help: "Content rows appended, by page",
		}, []string{"page"}),
		contentKeysSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_content_keys_skipped_total",
			Help: "Batch keys that were not written, by reason",
		}, []string{"reason"}),
		contentPageReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cms_content_page_reads_total",
			Help: "Page content reconstructions served",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_auth_attempts_total",
			Help: "Authenticate calls by result",
		}, []string{"result"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_uploads_total",
			Help: "Image uploads by result",
		}, []string{"result"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cms_upload_size_bytes",
			Help:    "Size of stored uploads",
			Buckets: prometheus.ExponentialBuckets(4096, 4, 8),
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errorsTotal,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.profilingActive,
		m.contentFieldsWritten,
		m.contentKeysSkipped,
		m.contentPageReads,
		m.authAttempts,
		m.uploadsTotal,
		m.uploadBytes,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         vi.AppName,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

func (m *ServerMetrics) IncContentFieldsWritten(page string) {
	m.contentFieldsWritten.WithLabelValues(page).Inc()
}

func (m *ServerMetrics) IncContentKeysSkipped(reason string) {
	m.contentKeysSkipped.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) IncContentPageReads() {
	m.contentPageReads.Inc()
}

// IncAuthAttempt counts authenticate calls. result is one of ok, invalid,
// malformed, error.
func (m *ServerMetrics) IncAuthAttempt(result string) {
	m.authAttempts.WithLabelValues(result).Inc()
}

func (m *ServerMetrics) ObserveUpload(result string, bytes int64) {
	m.uploadsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.uploadBytes.Observe(float64(bytes))
	}
}
