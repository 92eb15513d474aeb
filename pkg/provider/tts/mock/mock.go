// Package mock provides a scripted test double for [tts.Synthesizer].
package mock

import (
	"context"
	"sync"

	"github.com/quorumbot/quorum/pkg/provider/tts"
)

// Synthesizer is a mock [tts.Synthesizer]. It records every synthesized text
// and returns a fixed clip.
type Synthesizer struct {
	mu sync.Mutex

	// Clip is returned by every Synthesize call. When zero, a short silent
	// 16 kHz mono clip is returned instead.
	Clip tts.Clip

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// ErrOnCall, when > 0, makes only the Nth call (1-based) fail with Err.
	ErrOnCall int

	// Texts records the text of every Synthesize invocation in order.
	Texts []string
}

// Synthesize implements [tts.Synthesizer].
func (s *Synthesizer) Synthesize(_ context.Context, text string) (tts.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Texts = append(s.Texts, text)
	if s.Err != nil && (s.ErrOnCall == 0 || s.ErrOnCall == len(s.Texts)) {
		return tts.Clip{}, s.Err
	}
	if s.Clip.SampleRate == 0 {
		return tts.Clip{PCM: make([]byte, 320), SampleRate: 16000, Channels: 1}, nil
	}
	return s.Clip, nil
}

// Name implements [tts.Synthesizer].
func (s *Synthesizer) Name() string { return "mock" }

// CallCount returns the number of recorded Synthesize calls. Thread-safe.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Texts)
}

// Compile-time interface check.
var _ tts.Synthesizer = (*Synthesizer)(nil)
