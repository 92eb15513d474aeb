package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/quorumbot/quorum/internal/config"
)

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
stt:
  server_url: http://localhost:9000
tts:
  server_url: http://localhost:8020
  voice: jimmy
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader() error: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 || cfg.Audio.FrameMillis != 500 {
		t.Errorf("audio defaults = %d Hz / %d ms, want 16000/500", cfg.Audio.SampleRate, cfg.Audio.FrameMillis)
	}
	if cfg.VAD.Threshold != 0.3 {
		t.Errorf("vad.threshold default = %v, want 0.3", cfg.VAD.Threshold)
	}
	if cfg.VAD.SilenceTimeout() != 1500*time.Millisecond {
		t.Errorf("vad silence timeout = %v, want 1.5s", cfg.VAD.SilenceTimeout())
	}
	if cfg.Agent.ReplyTimeout() != 30*time.Second {
		t.Errorf("agent reply timeout = %v, want 30s", cfg.Agent.ReplyTimeout())
	}
	if cfg.Agent.SelfInterruptWindow() != 8*time.Second {
		t.Errorf("self-interrupt window = %v, want 8s", cfg.Agent.SelfInterruptWindow())
	}
	if cfg.Meeting.BotName != "Quorum" {
		t.Errorf("bot name default = %q, want Quorum", cfg.Meeting.BotName)
	}
	if cfg.STT.Provider != "whisperhttp" || cfg.TTS.Provider != "xtts" {
		t.Errorf("provider defaults = %q/%q, want whisperhttp/xtts", cfg.STT.Provider, cfg.TTS.Provider)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yaml := `
stt:
  server_url: http://localhost:9000
  wisper_model: tiny
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
}

func TestValidateSileroRequiresServerURL(t *testing.T) {
	t.Parallel()
	yaml := `
vad:
  provider: silero
stt:
  server_url: http://localhost:9000
tts:
  server_url: http://localhost:8020
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for silero without server_url, got nil")
	}
	if !strings.Contains(err.Error(), "vad.server_url") {
		t.Errorf("error should mention vad.server_url, got: %v", err)
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
vad:
  threshold: 1.5
stt:
  provider: whisperhttp
tts:
  server_url: http://localhost:8020
  speed: 9
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined validation errors, got nil")
	}
	for _, want := range []string{"log_level", "vad.threshold", "stt.server_url", "tts.speed"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidateUnknownProvider(t *testing.T) {
	t.Parallel()
	yaml := `
stt:
  server_url: http://localhost:9000
tts:
  provider: espeak
  server_url: http://localhost:8020
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "tts.provider") {
		t.Fatalf("expected unknown tts.provider error, got: %v", err)
	}
}

func TestValidateFallbackRequiresModel(t *testing.T) {
	t.Parallel()
	yaml := `
stt:
  server_url: http://localhost:9000
tts:
  server_url: http://localhost:8020
fallback:
  provider: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "fallback.model") {
		t.Fatalf("expected fallback.model error, got: %v", err)
	}
}
