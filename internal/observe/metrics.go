// Package observe provides application-wide observability primitives for
// vadscribe: OpenTelemetry metrics, tracing, trace-aware structured logging,
// and HTTP middleware for the admin listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint while a batch runs. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all vadscribe metrics.
const meterName = "github.com/MrWong99/vadscribe"

// Span statuses recorded by [Metrics.RecordSpan].
const (
	SpanAccepted  = "accepted"
	SpanQuiet     = "quiet"
	SpanFailed    = "failed"
	SpanMalformed = "malformed"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks the latency of a single Recognize call.
	STTDuration metric.Float64Histogram

	// VADDuration tracks speech detection over a whole file.
	VADDuration metric.Float64Histogram

	// FileDuration tracks end-to-end processing of one input file.
	FileDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts recognizer calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts recognizer failures. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Spans counts speech spans by outcome. Use with attribute:
	//   attribute.String("status", SpanAccepted|SpanQuiet|SpanFailed|SpanMalformed)
	Spans metric.Int64Counter

	// Sentences counts sentence units appended to transcripts.
	Sentences metric.Int64Counter

	// Files counts processed input files. Use with attribute:
	//   attribute.String("status", ...)
	Files metric.Int64Counter

	// --- Gauges ---

	// ActiveRecognitions tracks in-flight Recognize calls.
	ActiveRecognitions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin listener request time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for single
// recognition calls, which range from tens of milliseconds on a GPU to
// minutes on a CPU.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// fileBuckets defines histogram bucket boundaries (in seconds) for
// whole-file stages.
var fileBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("vadscribe.stt.duration",
		metric.WithDescription("Latency of a single speech recognition call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VADDuration, err = m.Float64Histogram("vadscribe.vad.duration",
		metric.WithDescription("Latency of speech detection over a whole file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(fileBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FileDuration, err = m.Float64Histogram("vadscribe.file.duration",
		metric.WithDescription("End-to-end processing time of one input file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(fileBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("vadscribe.provider.requests",
		metric.WithDescription("Total recognizer calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("vadscribe.provider.errors",
		metric.WithDescription("Total recognizer errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Spans, err = m.Int64Counter("vadscribe.spans",
		metric.WithDescription("Total speech spans by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Sentences, err = m.Int64Counter("vadscribe.sentences",
		metric.WithDescription("Total sentence units appended to transcripts."),
	); err != nil {
		return nil, err
	}
	if met.Files, err = m.Int64Counter("vadscribe.files",
		metric.WithDescription("Total input files by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRecognitions, err = m.Int64UpDownCounter("vadscribe.active_recognitions",
		metric.WithDescription("Number of in-flight speech recognition calls."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("vadscribe.http.request.duration",
		metric.WithDescription("Admin listener request latency by method and path."),
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

// RecordProviderRequest records a recognizer call with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a recognizer failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSpan records the outcome of one speech span.
func (m *Metrics) RecordSpan(ctx context.Context, status string) {
	m.Spans.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordSentences adds n appended sentence units.
func (m *Metrics) RecordSentences(ctx context.Context, n int) {
	if n > 0 {
		m.Sentences.Add(ctx, int64(n))
	}
}

// RecordFile records a finished input file and its processing time.
func (m *Metrics) RecordFile(ctx context.Context, status string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Files.Add(ctx, 1, attrs)
	m.FileDuration.Record(ctx, seconds, attrs)
}
