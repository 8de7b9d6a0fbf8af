// Package observe provides application-wide observability primitives for
// Mission Genesis: OpenTelemetry metrics, tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/missiongenesis"

// Narration outcomes reported through [Metrics.RecordNarration].
const (
	NarrationPlayed  = "played"
	NarrationDropped = "dropped"
	NarrationEmpty   = "empty"
	NarrationFailed  = "failed"
)

// Simulation outcomes reported through [Metrics.RecordSimulation].
const (
	SimulationSaved     = "saved"
	SimulationFailed    = "failed"
	SimulationCancelled = "cancelled"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks LLM completion latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// NarrationRequests counts narration outcomes. Use with attribute:
	//   attribute.String("outcome", ...), one of the Narration* constants.
	NarrationRequests metric.Int64Counter

	// AssistantTurns counts answered questions. Use with attribute:
	//   attribute.String("status", ...): "ok", "empty" or "error".
	AssistantTurns metric.Int64Counter

	// PlaybackSessions counts playback sessions started.
	PlaybackSessions metric.Int64Counter

	// SimulationRuns counts video simulation runs. Use with attribute:
	//   attribute.String("outcome", ...), one of the Simulation* constants.
	SimulationRuns metric.Int64Counter

	// SlideChanges counts navigation moves. Use with attribute:
	//   attribute.String("slide", ...)
	SlideChanges metric.Int64Counter

	// --- Gauges ---

	// ActivePlayback is 1 while a playback session is connected, else 0.
	ActivePlayback metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for hosted
// model round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("missiongenesis.llm.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("missiongenesis.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("missiongenesis.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("missiongenesis.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.NarrationRequests, err = m.Int64Counter("missiongenesis.narration.requests",
		metric.WithDescription("Narration requests by outcome."),
	); err != nil {
		return nil, err
	}
	if met.AssistantTurns, err = m.Int64Counter("missiongenesis.assistant.turns",
		metric.WithDescription("Assistant question/answer turns by status."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackSessions, err = m.Int64Counter("missiongenesis.playback.sessions",
		metric.WithDescription("Playback sessions started."),
	); err != nil {
		return nil, err
	}
	if met.SimulationRuns, err = m.Int64Counter("missiongenesis.simulation.runs",
		metric.WithDescription("Video simulation runs by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SlideChanges, err = m.Int64Counter("missiongenesis.deck.slide_changes",
		metric.WithDescription("Slide navigation moves by destination slide."),
	); err != nil {
		return nil, err
	}

	if met.ActivePlayback, err = m.Int64UpDownCounter("missiongenesis.playback.active",
		metric.WithDescription("Whether a playback session is currently connected."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("missiongenesis.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordNarration records one narration outcome.
func (m *Metrics) RecordNarration(ctx context.Context, outcome string) {
	m.NarrationRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAssistantTurn records one assistant turn.
func (m *Metrics) RecordAssistantTurn(ctx context.Context, status string) {
	m.AssistantTurns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordSimulation records how a video simulation run ended.
func (m *Metrics) RecordSimulation(ctx context.Context, outcome string) {
	m.SimulationRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSlideChange records a move to the named slide.
func (m *Metrics) RecordSlideChange(ctx context.Context, slide string) {
	m.SlideChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("slide", slide)))
}

// PlaybackStarted records a new session and marks playback active.
func (m *Metrics) PlaybackStarted(ctx context.Context) {
	m.PlaybackSessions.Add(ctx, 1)
	m.ActivePlayback.Add(ctx, 1)
}

// PlaybackEnded marks the active session as gone.
func (m *Metrics) PlaybackEnded(ctx context.Context) {
	m.ActivePlayback.Add(ctx, -1)
}
