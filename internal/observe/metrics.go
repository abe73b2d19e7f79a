// Package observe provides application-wide observability primitives for
// the memory engine: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all memory-engine
// metrics.
const meterName = "github.com/MrWong99/tieredmem"

// Metrics holds every OpenTelemetry metric instrument the memory engine
// records against. All fields are safe for concurrent use — the underlying
// OTel types handle their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// IngestDuration tracks the ingest pipeline's resource-append latency.
	IngestDuration metric.Float64Histogram

	// ExtractDuration tracks extract/classify/conflict/embed latency.
	ExtractDuration metric.Float64Histogram

	// RetrieveDuration tracks smart-search and context-build latency.
	RetrieveDuration metric.Float64Histogram

	// MaintenanceDuration tracks a nightly/weekly/monthly pipeline run's
	// latency. Use with attribute.String("job", "nightly"|"weekly"|"monthly").
	MaintenanceDuration metric.Float64Histogram

	// --- Counters ---

	// IngestTotal counts resources appended via /ingest.
	IngestTotal metric.Int64Counter

	// ExtractTotal counts items created via /extract or /v2/items. Use with
	// attribute.String("source", "extract"|"direct").
	ExtractTotal metric.Int64Counter

	// ConflictsResolved counts conflict-resolution decisions made during
	// ingest. Use with attribute.String("strategy", "recency"|"confidence").
	ConflictsResolved metric.Int64Counter

	// ErrorsTotal counts handled errors by operation. Use with
	// attribute.String("op", ...), attribute.String("kind", ...).
	ErrorsTotal metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	resetCount atomic.Int64
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for the
// ingest/retrieve/maintenance pipelines.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.IngestDuration, err = m.Float64Histogram("memory.ingest.duration",
		metric.WithDescription("Latency of the ingest/resource-append step."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractDuration, err = m.Float64Histogram("memory.extract.duration",
		metric.WithDescription("Latency of extract/classify/conflict/embed."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetrieveDuration, err = m.Float64Histogram("memory.retrieve.duration",
		metric.WithDescription("Latency of smart-search and context building."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MaintenanceDuration, err = m.Float64Histogram("memory.maintenance.duration",
		metric.WithDescription("Latency of a nightly/weekly/monthly maintenance run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.IngestTotal, err = m.Int64Counter("memory.ingest.total",
		metric.WithDescription("Total resources appended via /ingest."),
	); err != nil {
		return nil, err
	}
	if met.ExtractTotal, err = m.Int64Counter("memory.extract.total",
		metric.WithDescription("Total items created, by source."),
	); err != nil {
		return nil, err
	}
	if met.ConflictsResolved, err = m.Int64Counter("memory.conflicts.resolved",
		metric.WithDescription("Total conflict-resolution decisions, by strategy."),
	); err != nil {
		return nil, err
	}
	if met.ErrorsTotal, err = m.Int64Counter("memory.errors.total",
		metric.WithDescription("Total handled errors, by operation and kind."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("memory.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordIngest is a convenience method that records a resource-ingest
// counter increment.
func (m *Metrics) RecordIngest(ctx context.Context) {
	m.IngestTotal.Add(ctx, 1)
}

// RecordExtract is a convenience method that records an item-created counter
// increment with the standard attribute set.
func (m *Metrics) RecordExtract(ctx context.Context, source string) {
	m.ExtractTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordConflictResolved is a convenience method that records a
// conflict-resolution counter increment.
func (m *Metrics) RecordConflictResolved(ctx context.Context, strategy string) {
	m.ConflictsResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordError is a convenience method that records a handled-error counter
// increment.
func (m *Metrics) RecordError(ctx context.Context, op, kind string) {
	m.ErrorsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("kind", kind),
		),
	)
}

// Reset implements POST /metrics/reset. The OpenTelemetry Metrics API
// exposes no instrument-level reset (counters and histograms are
// monotonic/cumulative by design; only a full MeterProvider replacement
// clears them), so Reset only tracks how many resets have been requested
// and leaves every OTel instrument's accumulated state untouched. Callers
// that need a truly zeroed Prometheus scrape must restart the process.
func (m *Metrics) Reset() {
	m.resetCount.Add(1)
}

// ResetCount reports how many times Reset has been called.
func (m *Metrics) ResetCount() int64 {
	return m.resetCount.Load()
}
