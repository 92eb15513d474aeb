// Package segment turns the continuous capture frame stream plus a
// speech-activity signal into discrete utterances.
//
// The segmenter is a small hysteresis state machine: Idle until a frame
// scores above the speech threshold, then Accumulating until a silence run
// outlasts the silence timeout (emit or discard depending on accumulated
// length) or the accumulated speech hits the hard maximum (forced emit).
// Exactly one utterance is live at a time.
package segment

import (
	"context"
	"log/slog"
	"time"

	"github.com/quorumbot/quorum/pkg/audio"
	"github.com/quorumbot/quorum/pkg/provider/vad"
	"github.com/quorumbot/quorum/pkg/provider/vad/rms"
)

// Config holds the segmentation thresholds. Zero values are replaced with the
// defaults listed on each field.
type Config struct {
	// FrameLength is the capture frame duration requested from the source.
	// Default 500ms.
	FrameLength time.Duration

	// SampleRate of the capture stream. Default 16000.
	SampleRate int

	// SpeechThreshold is the minimum classifier score treated as speech.
	// Default 0.3.
	SpeechThreshold float64

	// SilenceTimeout is the silence run that ends an utterance. Default 1.5s.
	SilenceTimeout time.Duration

	// MinSpeech is the minimum utterance length; shorter spans are discarded
	// as noise blips. Default 1s.
	MinSpeech time.Duration

	// MaxSpeech force-finalizes an utterance regardless of silence, bounding
	// buffer growth on continuous speech. Default 30s.
	MaxSpeech time.Duration

	// OnsetWait is how long Next listens for speech onset before returning a
	// negative result. Default 2s.
	OnsetWait time.Duration

	// Window is the sub-window size in samples used for classification
	// within a frame. Default 512.
	Window int
}

func (c *Config) applyDefaults() {
	if c.FrameLength <= 0 {
		c.FrameLength = 500 * time.Millisecond
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.SpeechThreshold <= 0 {
		c.SpeechThreshold = 0.3
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = 1500 * time.Millisecond
	}
	if c.MinSpeech <= 0 {
		c.MinSpeech = time.Second
	}
	if c.MaxSpeech <= 0 {
		c.MaxSpeech = 30 * time.Second
	}
	if c.OnsetWait <= 0 {
		c.OnsetWait = 2 * time.Second
	}
	if c.Window <= 0 {
		c.Window = 512
	}
}

// Segmenter consumes frames from a source and produces utterances.
// Not safe for concurrent use; the turn coordinator is its only caller.
type Segmenter struct {
	src      audio.FrameSource
	cls      vad.Classifier
	fallback vad.Classifier
	cfg      Config

	warnedClassifier bool
}

// New creates a Segmenter reading frames from src and scoring them with cls.
// When cls errors, scoring degrades to an RMS energy threshold for the
// affected window.
func New(src audio.FrameSource, cls vad.Classifier, cfg Config) *Segmenter {
	cfg.applyDefaults()
	return &Segmenter{
		src:      src,
		cls:      cls,
		fallback: &rms.Classifier{},
		cfg:      cfg,
	}
}

// Next blocks until the next utterance is finalized and returns it.
//
// A (nil, nil) return means no speech onset was detected within the onset
// wait — a normal negative result, not an error. A non-nil error is returned
// only when ctx is done.
//
// Timing is driven by accumulated audio duration, not wall clock, so the
// state machine behaves identically against a real-time source and a
// scripted test source.
func (s *Segmenter) Next(ctx context.Context) (*audio.Utterance, error) {
	var (
		buf          []byte
		accumulating bool
		start        time.Time
		total        time.Duration
		silence      time.Duration
		waited       time.Duration
	)

	for {
		frame, err := s.src.NextFrame(ctx, s.cfg.FrameLength)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transient capture failure: substitute silence and keep pacing.
			frame = audio.ZeroFrame(s.cfg.FrameLength, s.cfg.SampleRate, 1, frame.Timestamp)
		}
		frameDur := frame.Duration()
		if frameDur <= 0 {
			frameDur = s.cfg.FrameLength
		}

		score := s.score(ctx, frame)

		if !accumulating {
			if score >= s.cfg.SpeechThreshold {
				accumulating = true
				start = time.Now()
				buf = append(buf, frame.Data...)
				total = frameDur
				silence = 0
				slog.Debug("speech onset detected", "score", score)
				continue
			}
			waited += frameDur
			if waited >= s.cfg.OnsetWait {
				return nil, nil
			}
			continue
		}

		// Accumulating: every frame is appended, including bridging silence.
		buf = append(buf, frame.Data...)
		total += frameDur

		if score >= s.cfg.SpeechThreshold {
			silence = 0
		} else {
			silence += frameDur
		}

		if total >= s.cfg.MaxSpeech {
			slog.Debug("utterance force-finalized at max duration", "duration", total)
			return s.finalize(buf, start, total-silence), nil
		}

		if silence >= s.cfg.SilenceTimeout {
			// The trailing silence run is padding, not speech: it stays in
			// the PCM (transcription likes the tail) but does not count
			// toward the minimum-length check or the reported duration.
			speech := total - silence
			if speech >= s.cfg.MinSpeech {
				return s.finalize(buf, start, speech), nil
			}
			// Noise blip: discard and return to Idle.
			slog.Debug("discarding sub-minimum utterance", "duration", total-silence)
			buf = nil
			accumulating = false
			total = 0
			silence = 0
			waited = 0
		}
	}
}

// finalize freezes the accumulated buffer into an Utterance.
func (s *Segmenter) finalize(buf []byte, start time.Time, total time.Duration) *audio.Utterance {
	pcm := make([]byte, len(buf))
	copy(pcm, buf)
	return &audio.Utterance{
		PCM:        pcm,
		SampleRate: s.cfg.SampleRate,
		Channels:   1,
		Start:      start,
		Duration:   total,
	}
}

// score classifies a frame as the maximum score over fixed-size sub-windows,
// because activity models are windowed and a half-second frame may straddle
// silence and speech. Classifier errors degrade to the RMS fallback for the
// affected window.
func (s *Segmenter) score(ctx context.Context, frame audio.AudioFrame) float64 {
	windowBytes := s.cfg.Window * 2
	if len(frame.Data) == 0 {
		return 0
	}

	var maxScore float64
	for off := 0; off < len(frame.Data); off += windowBytes {
		end := off + windowBytes
		if end > len(frame.Data) {
			end = len(frame.Data)
		}
		window := frame.Data[off:end]

		score, err := s.cls.Score(ctx, window, frame.SampleRate)
		if err != nil {
			if !s.warnedClassifier {
				s.warnedClassifier = true
				slog.Warn("speech classifier unavailable, degrading to RMS threshold", "error", err)
			}
			score, _ = s.fallback.Score(ctx, window, frame.SampleRate)
		}
		if score > maxScore {
			maxScore = score
		}
	}
	return maxScore
}
