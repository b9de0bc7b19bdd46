// Package observe provides application-wide observability primitives for
// SmartClip: OpenTelemetry metrics, structured logging helpers, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all SmartClip
// metrics.
const meterName = "github.com/LordBoos/smartclip"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// Detections counts detector firings. Use with attributes:
	//   attribute.String("detector", ...), attribute.String("label", ...)
	Detections metric.Int64Counter

	// ClipDecisions counts quality-scorer outcomes. Use with attributes:
	//   attribute.String("detector", ...), attribute.String("decision", ...)
	ClipDecisions metric.Int64Counter

	// DroppedFrames counts frames discarded because a detector queue was
	// full. Use with attribute: attribute.String("detector", ...)
	DroppedFrames metric.Int64Counter

	// --- Histograms ---

	// QualityScore tracks the overall quality score distribution.
	QualityScore metric.Float64Histogram

	// DetectionConfidence tracks raw detector confidence by detector.
	DetectionConfidence metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveDetectors tracks the number of currently running detectors.
	ActiveDetectors metric.Int64UpDownCounter
}

// scoreBuckets defines histogram bucket boundaries for values in [0, 1].
var scoreBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Detections, err = m.Int64Counter("smartclip.detections",
		metric.WithDescription("Total detector firings by detector and label."),
	); err != nil {
		return nil, err
	}
	if met.ClipDecisions, err = m.Int64Counter("smartclip.clip.decisions",
		metric.WithDescription("Total clip decisions by detector and decision."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("smartclip.dropped_frames",
		metric.WithDescription("Frames discarded because a detector queue was full."),
	); err != nil {
		return nil, err
	}

	if met.QualityScore, err = m.Float64Histogram("smartclip.quality.score",
		metric.WithDescription("Overall quality score distribution."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DetectionConfidence, err = m.Float64Histogram("smartclip.detection.confidence",
		metric.WithDescription("Raw detector confidence by detector."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("smartclip.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.ActiveDetectors, err = m.Int64UpDownCounter("smartclip.active_detectors",
		metric.WithDescription("Number of currently running detectors."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordDetection records one detector firing with its confidence.
func (m *Metrics) RecordDetection(ctx context.Context, detector, label string, confidence float64) {
	attrs := metric.WithAttributes(
		attribute.String("detector", detector),
		attribute.String("label", label),
	)
	m.Detections.Add(ctx, 1, attrs)
	m.DetectionConfidence.Record(ctx, confidence,
		metric.WithAttributes(attribute.String("detector", detector)),
	)
}

// RecordClipDecision records a quality-scorer outcome and the overall
// score that produced it.
func (m *Metrics) RecordClipDecision(ctx context.Context, detector, decision string, overall float64) {
	m.ClipDecisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("detector", detector),
			attribute.String("decision", decision),
		),
	)
	m.QualityScore.Record(ctx, overall)
}
