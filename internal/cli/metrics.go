package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/observability"
)

// metrics exports observability hooks as Prometheus metrics.
type metrics struct {
	registry *prometheus.Registry

	outcomes      *prometheus.CounterVec
	builds        *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	buildAttempts prometheus.Histogram
	inFlight      prometheus.Gauge
	healed        prometheus.Counter
	unexpected    *prometheus.CounterVec

	cacheOps *prometheus.CounterVec

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec

	logger *log.Logger
}

func newMetrics(logger *log.Logger) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snackager_requests_total",
			Help: "Bundle requests by outcome.",
		}, []string{"outcome"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snackager_builds_total",
			Help: "Finished builds by result code.",
		}, []string{"code"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snackager_build_duration_seconds",
			Help:    "Build duration including persistence.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"platforms"}),
		buildAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "snackager_build_attempts",
			Help:    "Healing-loop attempts per build.",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snackager_builds_in_flight",
			Help: "Builds currently running in this process.",
		}),
		healed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snackager_healed_dependencies_total",
			Help: "Dependencies installed or externalized by the healing loop.",
		}),
		unexpected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snackager_unexpected_errors_total",
			Help: "Build failures not caused by the request.",
		}, []string{"code"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snackager_cache_operations_total",
			Help: "Cache lookups and writes by key type.",
		}, []string{"key_type", "op"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snackager_upstream_responses_total",
			Help: "Registry responses by host and status.",
		}, []string{"host", "status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snackager_upstream_duration_seconds",
			Help:    "Registry request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snackager_upstream_errors_total",
			Help: "Registry requests that failed without a response.",
		}, []string{"host"}),
		logger: logger,
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.outcomes, m.builds, m.buildDuration, m.buildAttempts, m.inFlight,
		m.healed, m.unexpected, m.cacheOps,
		m.upstreamRequests, m.upstreamDuration, m.upstreamErrors,
	)
	return m
}

// install makes m the process-wide observability hooks.
func (m *metrics) install() {
	observability.SetBuildHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

func (m *metrics) OnOutcome(ctx context.Context, outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *metrics) OnBuildStart(ctx context.Context, handle string, platforms []string) {
	m.inFlight.Inc()
}

func (m *metrics) OnBuildComplete(ctx context.Context, handle string, platforms []string, attempts int, duration time.Duration, err error) {
	m.inFlight.Dec()
	code := "ok"
	if err != nil {
		code = string(errors.GetCode(err))
		if code == "" {
			code = string(errors.ErrCodeInternal)
		}
	}
	m.builds.WithLabelValues(code).Inc()
	m.buildDuration.WithLabelValues(strconv.Itoa(len(platforms))).Observe(duration.Seconds())
	if attempts > 0 {
		m.buildAttempts.Observe(float64(attempts))
	}
}

func (m *metrics) OnDependencyHealed(ctx context.Context, handle, dependency string) {
	m.healed.Inc()
}

// OnUnexpectedError is the alerting path: the failure is counted and logged
// at error level.
func (m *metrics) OnUnexpectedError(ctx context.Context, handle string, err error) {
	m.unexpected.WithLabelValues(string(errors.GetCode(err))).Inc()
	if m.logger != nil {
		m.logger.Error("unexpected build failure", "handle", handle, "err", err)
	}
}

func (m *metrics) OnCacheHit(ctx context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (m *metrics) OnCacheMiss(ctx context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (m *metrics) OnCacheSet(ctx context.Context, keyType string, size int) {
	m.cacheOps.WithLabelValues(keyType, "set").Inc()
}

func (m *metrics) OnRequest(ctx context.Context, method, host, path string) {}

func (m *metrics) OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration) {
	m.upstreamRequests.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	m.upstreamDuration.WithLabelValues(host).Observe(duration.Seconds())
}

func (m *metrics) OnError(ctx context.Context, method, host, path string, err error) {
	m.upstreamErrors.WithLabelValues(host).Inc()
}

var (
	_ observability.BuildHooks = (*metrics)(nil)
	_ observability.CacheHooks = (*metrics)(nil)
	_ observability.HTTPHooks  = (*metrics)(nil)
)
