// Package openai provides a speech-synthesis backend using the OpenAI
// text-to-speech API via the official Go SDK. WAV output is requested so the
// PCM payload can be extracted without an external decoder.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/quorumbot/quorum/pkg/audio"
	"github.com/quorumbot/quorum/pkg/provider/tts"
)

const defaultModel = oai.SpeechModelGPT4oMiniTTS

// Option is a functional option for configuring the Synthesizer.
type Option func(*Synthesizer)

// WithModel overrides the speech model (default gpt-4o-mini-tts).
func WithModel(model oai.SpeechModel) Option {
	return func(s *Synthesizer) {
		s.model = model
	}
}

// WithSpeed sets the playback speed multiplier (0.25–4.0). Zero leaves the
// API default of 1.0.
func WithSpeed(speed float64) Option {
	return func(s *Synthesizer) {
		s.speed = speed
	}
}

// Synthesizer implements [tts.Synthesizer] backed by the OpenAI speech API.
type Synthesizer struct {
	client oai.Client
	model  oai.SpeechModel
	voice  oai.AudioSpeechNewParamsVoice
	speed  float64
}

// New creates a Synthesizer using the given API key and voice (e.g. "alloy",
// "nova").
func New(apiKey, voice string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	if voice == "" {
		return nil, errors.New("openai tts: voice must not be empty")
	}
	s := &Synthesizer{
		client: oai.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
		voice:  oai.AudioSpeechNewParamsVoice(voice),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Name implements [tts.Synthesizer].
func (s *Synthesizer) Name() string { return "openai" }

// Synthesize implements [tts.Synthesizer].
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, nil
	}

	params := oai.AudioSpeechNewParams{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	}
	if s.speed != 0 {
		params.Speed = oai.Float(s.speed)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("openai tts: speech request: %w", err)
	}
	defer resp.Body.Close()

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("openai tts: read response body: %w", err)
	}

	info, err := audio.ParseWAV(wav)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("openai tts: parse response audio: %w", err)
	}

	return tts.Clip{
		PCM:        wav[info.DataOffset : info.DataOffset+info.DataLen],
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
	}, nil
}

// Compile-time interface check.
var _ tts.Synthesizer = (*Synthesizer)(nil)
