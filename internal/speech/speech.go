// Package speech turns agent reply text into audible output in the meeting.
//
// Replies are split into sentence-level chunks and synthesized one at a time:
// playback of the first sentence starts while later sentences are still
// unsynthesized, which keeps perceived latency low without any parallelism.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quorumbot/quorum/internal/observe"
	"github.com/quorumbot/quorum/pkg/audio"
	"github.com/quorumbot/quorum/pkg/provider/tts"
)

// Dispatcher synthesizes and plays reply text chunk by chunk.
type Dispatcher struct {
	synth   tts.Synthesizer
	sink    audio.PlaybackSink
	conv    audio.FormatConverter
	metrics *observe.Metrics
}

// Option is a functional option for configuring the Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records per-chunk synthesis latency and errors.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher. Synthesized audio is converted to target before
// being handed to sink.
func New(synth tts.Synthesizer, sink audio.PlaybackSink, target audio.Format, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		synth: synth,
		sink:  sink,
		conv:  audio.FormatConverter{Target: target},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Speak plays text into the sink. A synthesis or playback failure on one
// chunk is logged and the remaining chunks still play; Speak returns an
// error only when no chunk produced any audio at all.
func (d *Dispatcher) Speak(ctx context.Context, text string) error {
	chunks := SplitSentences(text)
	if len(chunks) == 0 {
		return nil
	}

	played := 0
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			if played > 0 {
				return nil
			}
			return fmt.Errorf("speech: speak: %w", err)
		}

		start := time.Now()
		clip, err := d.synth.Synthesize(ctx, chunk)
		if d.metrics != nil {
			d.metrics.RecordTTS(ctx, time.Since(start), err)
		}
		if err != nil {
			slog.Warn("synthesis failed for chunk, skipping",
				"backend", d.synth.Name(),
				"chunk", i+1,
				"chunks", len(chunks),
				"error", err,
			)
			continue
		}

		pcm := d.conv.Convert(clip.PCM, clip.SampleRate, clip.Channels)
		if len(pcm) == 0 {
			slog.Warn("synthesized chunk converted to empty audio, skipping",
				"backend", d.synth.Name(),
				"chunk", i+1,
			)
			continue
		}

		if err := d.sink.Play(ctx, pcm, d.conv.Target.SampleRate, d.conv.Target.Channels); err != nil {
			slog.Warn("playback failed for chunk, skipping",
				"chunk", i+1,
				"chunks", len(chunks),
				"error", err,
			)
			continue
		}
		played++
	}

	if played == 0 {
		return fmt.Errorf("speech: all %d chunks failed", len(chunks))
	}
	return nil
}

// SplitSentences splits text at '.', '!', or '?' characters followed by
// whitespace. Text without such a boundary comes back as a single chunk, so
// a one-sentence reply is never split. Blank input yields no chunks.
func SplitSentences(text string) []string {
	var chunks []string
	rest := strings.TrimSpace(text)
	for rest != "" {
		idx := sentenceBoundary(rest)
		if idx < 0 {
			chunks = append(chunks, rest)
			break
		}
		if chunk := strings.TrimSpace(rest[:idx+1]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = strings.TrimLeft(rest[idx+1:], " \t\n\r")
	}
	return chunks
}

// sentenceBoundary returns the index of the first '.', '!', or '?' that is
// immediately followed by whitespace, or -1 if there is none.
func sentenceBoundary(s string) int {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			switch s[i+1] {
			case ' ', '\n', '\r', '\t':
				return i
			}
		}
	}
	return -1
}
