// Package observe provides the application's observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge.
//
// A package-level default is deliberately avoided; the app wires one
// [Metrics] value through the pipeline, and tests construct their own from a
// private [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/quorumbot/quorum"

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice-pipeline latencies: sub-100ms scoring up to multi-second synthesis.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// Metrics holds all metric instruments for the turn-taking pipeline.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// STTDuration tracks transcription latency per utterance.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks synthesis latency per chunk.
	TTSDuration metric.Float64Histogram

	// RoundDuration tracks full heard-to-spoken round latency.
	RoundDuration metric.Float64Histogram

	// Utterances counts finalized utterances from the segmenter.
	Utterances metric.Int64Counter

	// Rounds counts conversation rounds posted to the agent mailbox.
	Rounds metric.Int64Counter

	// RoundTimeouts counts rounds that expired with no agent reply.
	RoundTimeouts metric.Int64Counter

	// FramesDropped counts capture frames evicted from the frame queue.
	FramesDropped metric.Int64Counter

	// ProviderErrors counts backend failures. Use with attribute
	// attribute.String("kind", "stt"|"tts").
	ProviderErrors metric.Int64Counter
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("quorum.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("quorum.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis per chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RoundDuration, err = m.Float64Histogram("quorum.round.duration",
		metric.WithDescription("Latency of a full conversation round, heard to spoken."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("quorum.utterances",
		metric.WithDescription("Finalized utterances produced by the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.Rounds, err = m.Int64Counter("quorum.rounds",
		metric.WithDescription("Conversation rounds posted to the agent mailbox."),
	); err != nil {
		return nil, err
	}
	if met.RoundTimeouts, err = m.Int64Counter("quorum.round.timeouts",
		metric.WithDescription("Rounds that expired with no agent reply."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("quorum.frames.dropped",
		metric.WithDescription("Capture frames evicted from the bounded frame queue."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("quorum.provider.errors",
		metric.WithDescription("Backend failures by kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordSTT records one transcription attempt.
func (m *Metrics) RecordSTT(ctx context.Context, elapsed time.Duration, err error) {
	m.STTDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "stt")))
	}
}

// RecordTTS records one synthesis attempt.
func (m *Metrics) RecordTTS(ctx context.Context, elapsed time.Duration, err error) {
	m.TTSDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "tts")))
	}
}
