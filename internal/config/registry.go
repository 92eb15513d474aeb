package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quorumbot/quorum/pkg/provider/stt"
	"github.com/quorumbot/quorum/pkg/provider/tts"
	"github.com/quorumbot/quorum/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to constructor functions per concern, so the
// app can turn a config block into a live backend without a switch statement
// spanning every implementation. Safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	vad map[string]func(VADConfig) (vad.Classifier, error)
	stt map[string]func(STTConfig) (stt.Transcriber, error)
	tts map[string]func(TTSConfig) (tts.Synthesizer, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		vad: make(map[string]func(VADConfig) (vad.Classifier, error)),
		stt: make(map[string]func(STTConfig) (stt.Transcriber, error)),
		tts: make(map[string]func(TTSConfig) (tts.Synthesizer, error)),
	}
}

// RegisterVAD registers a speech-activity classifier factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterVAD(name string, factory func(VADConfig) (vad.Classifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterSTT registers a transcription backend factory under name.
func (r *Registry) RegisterSTT(name string, factory func(STTConfig) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a synthesis backend factory under name.
func (r *Registry) RegisterTTS(name string, factory func(TTSConfig) (tts.Synthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateVAD builds the classifier selected by cfg.Provider.
func (r *Registry) CreateVAD(cfg VADConfig) (vad.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.vad[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad %q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}

// CreateSTT builds the transcription backend selected by cfg.Provider.
func (r *Registry) CreateSTT(cfg STTConfig) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt %q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}

// CreateTTS builds the synthesis backend selected by cfg.Provider.
func (r *Registry) CreateTTS(cfg TTSConfig) (tts.Synthesizer, error) {
	r.mu.RLock()
	factory, ok := r.tts[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts %q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}
