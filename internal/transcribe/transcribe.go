// Package transcribe converts finalized utterances into clean text.
//
// The dispatcher tries the primary backend (the remote transcription server)
// and on any failure falls back to the local engine synchronously within the
// same call; callers only ever see the final text or an empty string. Raw
// backend output is passed through degenerate-output filters before being
// returned.
package transcribe

import (
	"context"
	"log/slog"
	"time"

	"github.com/quorumbot/quorum/internal/observe"
	"github.com/quorumbot/quorum/internal/resilience"
	"github.com/quorumbot/quorum/pkg/audio"
	"github.com/quorumbot/quorum/pkg/provider/stt"
)

// Dispatcher produces clean transcripts from utterances, hiding backend
// failover behind a single call.
type Dispatcher struct {
	chain    *resilience.Chain[stt.Transcriber]
	language string
	metrics  *observe.Metrics
}

// Option is a functional option for configuring the Dispatcher.
type Option func(*Dispatcher)

// WithFallback appends a fallback backend, tried after the primary.
func WithFallback(backend stt.Transcriber) Option {
	return func(d *Dispatcher) {
		d.chain.AddFallback(backend.Name(), backend)
	}
}

// WithMetrics records per-call latency and provider errors.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher with the given primary backend. language is the
// BCP-47 code forwarded to backends ("" lets them pick).
func New(primary stt.Transcriber, language string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		chain: resilience.NewChain(primary, primary.Name(), resilience.ChainConfig{
			Breaker: resilience.BreakerConfig{
				Trip:     3,
				Cooldown: 30 * time.Second,
			},
		}),
		language: language,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Transcribe converts one utterance to filtered text. An empty result means
// no actionable speech: either every backend failed (logged) or the output
// was a recognised artifact. Callers treat both the same way.
func (d *Dispatcher) Transcribe(ctx context.Context, utt *audio.Utterance) string {
	if utt == nil || len(utt.PCM) == 0 {
		return ""
	}

	start := time.Now()
	raw, err := resilience.DoWithResult(d.chain, func(backend stt.Transcriber) (string, error) {
		return backend.Transcribe(ctx, utt.PCM, utt.SampleRate, d.language)
	})
	elapsed := time.Since(start)

	if d.metrics != nil {
		d.metrics.RecordSTT(ctx, elapsed, err)
	}
	if err != nil {
		slog.Error("transcription failed on all backends",
			"error", err,
			"utterance_duration", utt.Duration,
		)
		return ""
	}

	text := CleanTranscript(raw)
	slog.Debug("utterance transcribed",
		"raw_len", len(raw),
		"filtered_len", len(text),
		"elapsed", elapsed,
	)
	return text
}
