package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Known provider names per concern, checked by [Validate].
var validProviderNames = map[string][]string{
	"vad":      {"silero", "rms"},
	"stt":      {"whisperhttp"},
	"tts":      {"xtts", "openai"},
	"fallback": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates. Useful in tests where configs are string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent, returning a joined error listing
// every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Meeting.BridgeURL != "" && cfg.Meeting.URL == "" {
		errs = append(errs, errors.New("meeting.url is required when meeting.bridge_url is set"))
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMillis <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_ms %d must be positive", cfg.Audio.FrameMillis))
	}
	if cfg.Audio.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("audio.queue_depth %d must be positive", cfg.Audio.QueueDepth))
	}

	errs = append(errs, checkProviderName("vad.provider", "vad", cfg.VAD.Provider)...)
	if cfg.VAD.Provider == "silero" && cfg.VAD.ServerURL == "" {
		errs = append(errs, errors.New("vad.server_url is required for the silero provider"))
	}
	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad.threshold %.2f is out of range [0, 1]", cfg.VAD.Threshold))
	}
	if cfg.VAD.MinSpeechMS > cfg.VAD.MaxSpeechMS {
		errs = append(errs, fmt.Errorf("vad.min_speech_ms %d exceeds vad.max_speech_ms %d", cfg.VAD.MinSpeechMS, cfg.VAD.MaxSpeechMS))
	}

	errs = append(errs, checkProviderName("stt.provider", "stt", cfg.STT.Provider)...)
	if cfg.STT.Provider == "whisperhttp" && cfg.STT.ServerURL == "" {
		errs = append(errs, errors.New("stt.server_url is required for the whisperhttp provider"))
	}

	errs = append(errs, checkProviderName("tts.provider", "tts", cfg.TTS.Provider)...)
	if cfg.TTS.Provider == "xtts" && cfg.TTS.ServerURL == "" {
		errs = append(errs, errors.New("tts.server_url is required for the xtts provider"))
	}
	if cfg.TTS.Speed < 0.5 || cfg.TTS.Speed > 2.0 {
		errs = append(errs, fmt.Errorf("tts.speed %.2f is out of range [0.5, 2.0]", cfg.TTS.Speed))
	}

	if cfg.Agent.InboxPath == cfg.Agent.OutboxPath {
		errs = append(errs, errors.New("agent.inbox_path and agent.outbox_path must differ"))
	}

	if cfg.Fallback.Provider != "" {
		errs = append(errs, checkProviderName("fallback.provider", "fallback", cfg.Fallback.Provider)...)
		if cfg.Fallback.Model == "" {
			errs = append(errs, errors.New("fallback.model is required when fallback.provider is set"))
		}
	}

	return errors.Join(errs...)
}

func checkProviderName(field, kind, name string) []error {
	if name == "" || slices.Contains(validProviderNames[kind], name) {
		return nil
	}
	return []error{fmt.Errorf("%s %q is unknown; valid values: %v", field, name, validProviderNames[kind])}
}
