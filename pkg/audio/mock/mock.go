// Package mock provides in-memory implementations of [audio.FrameSource] and
// [audio.PlaybackSink] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/quorumbot/quorum/pkg/audio"
)

// Source is a scripted [audio.FrameSource]. It returns Frames in order; once
// the script is exhausted it returns zero-filled frames (or blocks until ctx
// is done when BlockWhenEmpty is set).
type Source struct {
	mu sync.Mutex

	// Frames is the script, consumed front to back.
	Frames []audio.AudioFrame

	// SampleRate and Channels describe the zero frames emitted after the
	// script is exhausted. Default 16000/1.
	SampleRate int
	Channels   int

	// BlockWhenEmpty makes NextFrame block on ctx after the script ends
	// instead of emitting silence.
	BlockWhenEmpty bool

	// CallCount records how many times NextFrame was called.
	CallCount int

	elapsed time.Duration
}

// NextFrame implements [audio.FrameSource].
func (s *Source) NextFrame(ctx context.Context, d time.Duration) (audio.AudioFrame, error) {
	s.mu.Lock()
	s.CallCount++
	if len(s.Frames) > 0 {
		f := s.Frames[0]
		s.Frames = s.Frames[1:]
		s.elapsed += f.Duration()
		s.mu.Unlock()
		return f, nil
	}
	rate, ch := s.SampleRate, s.Channels
	if rate == 0 {
		rate = 16000
	}
	if ch == 0 {
		ch = 1
	}
	ts := s.elapsed
	s.elapsed += d
	block := s.BlockWhenEmpty
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return audio.AudioFrame{}, ctx.Err()
	}
	return audio.ZeroFrame(d, rate, ch, ts), nil
}

// PlayCall records a single invocation of Sink.Play.
type PlayCall struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Sink is a recording [audio.PlaybackSink].
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// Calls records every Play invocation in order.
	Calls []PlayCall
}

// Play implements [audio.PlaybackSink]. It records the call and returns PlayErr.
func (s *Sink) Play(_ context.Context, pcm []byte, sampleRate, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make([]byte, len(pcm))
	copy(data, pcm)
	s.Calls = append(s.Calls, PlayCall{PCM: data, SampleRate: sampleRate, Channels: channels})
	return s.PlayErr
}

// CallCount returns the number of recorded Play calls. Thread-safe.
func (s *Sink) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Compile-time interface checks.
var (
	_ audio.FrameSource  = (*Source)(nil)
	_ audio.PlaybackSink = (*Sink)(nil)
)
