// Package mock provides a scripted test double for [stt.Transcriber].
package mock

import (
	"context"
	"sync"

	"github.com/quorumbot/quorum/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	PCMLen     int
	SampleRate int
	Language   string
}

// Transcriber is a mock [stt.Transcriber].
type Transcriber struct {
	mu sync.Mutex

	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// Text is returned by every Transcribe call when Texts is empty.
	Text string

	// Texts, when non-empty, is consumed front to back, one per call.
	Texts []string

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Calls records every Transcribe invocation in order.
	Calls []TranscribeCall
}

// Name implements [stt.Transcriber].
func (t *Transcriber) Name() string {
	if t.NameValue == "" {
		return "mock"
	}
	return t.NameValue
}

// Transcribe implements [stt.Transcriber]. It records the call and returns
// the scripted text or Err.
func (t *Transcriber) Transcribe(_ context.Context, pcm []byte, sampleRate int, language string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, TranscribeCall{PCMLen: len(pcm), SampleRate: sampleRate, Language: language})
	if t.Err != nil {
		return "", t.Err
	}
	if len(t.Texts) > 0 {
		text := t.Texts[0]
		t.Texts = t.Texts[1:]
		return text, nil
	}
	return t.Text, nil
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

// Compile-time interface check.
var _ stt.Transcriber = (*Transcriber)(nil)
