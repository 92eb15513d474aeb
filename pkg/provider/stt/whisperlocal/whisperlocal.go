// Package whisperlocal provides the fallback transcription backend: an
// in-process whisper.cpp model driven through the CGO bindings. The
// whisper.cpp static library (libwhisper.a) and headers (whisper.h) must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// The model is loaded once at startup; each Transcribe call creates a fresh
// whisper context, so concurrent calls are safe even though a single context
// is not.
package whisperlocal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/quorumbot/quorum/pkg/provider/stt"
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLanguage sets the default BCP-47 language code used when Transcribe is
// called with an empty language. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		e.language = lang
	}
}

// Engine implements [stt.Transcriber] on top of a locally loaded whisper.cpp
// model.
type Engine struct {
	model    whisperlib.Model
	language string
}

// New loads the whisper.cpp model from modelPath. The caller must call Close
// when the engine is no longer needed.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisperlocal: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisperlocal: load model %q: %w", modelPath, err)
	}
	e := &Engine{
		model:    model,
		language: "en",
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Name implements [stt.Transcriber].
func (e *Engine) Name() string { return "whisperlocal" }

// Transcribe implements [stt.Transcriber]. The sample rate must be 16000,
// which is the only rate whisper.cpp accepts; callers resample beforehand.
func (e *Engine) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisperlocal: context already cancelled: %w", err)
	}
	if sampleRate != 16000 {
		return "", fmt.Errorf("whisperlocal: unsupported sample rate %d (want 16000)", sampleRate)
	}
	if len(pcm) == 0 {
		return "", nil
	}

	lang := language
	if lang == "" {
		lang = e.language
	}

	// A fresh context per inference; contexts are not thread-safe but the
	// model may be shared.
	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisperlocal: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisperlocal: failed to set language, using model default", "language", lang, "error", err)
	}

	if err := wctx.Process(pcmToFloat32(pcm), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisperlocal: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisperlocal: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// pcmToFloat32 converts little-endian int16 mono PCM to the normalized
// float32 samples whisper.cpp expects.
func pcmToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// Compile-time interface check.
var _ stt.Transcriber = (*Engine)(nil)
