// Package config provides the configuration schema, loader, and provider
// registry for the Quorum meeting bot.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration, typically loaded from a YAML file via
// [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Meeting    MeetingConfig    `yaml:"meeting"`
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	STT        STTConfig        `yaml:"stt"`
	TTS        TTSConfig        `yaml:"tts"`
	Agent      AgentConfig      `yaml:"agent"`
	Fallback   FallbackConfig   `yaml:"fallback"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Recording  RecordingConfig  `yaml:"recording"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

// ServerConfig holds the observability endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the address for /metrics, /healthz, and /readyz
	// (e.g. ":9090"). Empty disables the HTTP server entirely.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`
}

// MeetingConfig describes the meeting to join.
type MeetingConfig struct {
	// URL is the meeting link. Empty means audio-only operation against the
	// local sound server, with no meeting surface controlled.
	URL string `yaml:"url"`

	// Name labels transcripts and archive rows (e.g. "standup").
	Name string `yaml:"name"`

	// BotName is the display name other participants see.
	BotName string `yaml:"bot_name"`

	// BridgeURL is the websocket address of the browser-automation daemon.
	// Empty means no bridge; audio comes straight from the capture device.
	BridgeURL string `yaml:"bridge_url"`
}

// AudioConfig describes the capture/playback pipeline.
type AudioConfig struct {
	SampleRate   int `yaml:"sample_rate"`
	FrameMillis  int `yaml:"frame_ms"`
	QueueDepth   int `yaml:"queue_depth"`

	// CaptureDevice and PlaybackDevice name PulseAudio endpoints. Empty
	// selects the server defaults.
	CaptureDevice  string `yaml:"capture_device"`
	PlaybackDevice string `yaml:"playback_device"`
}

// FrameLength returns the capture frame duration.
func (a AudioConfig) FrameLength() time.Duration {
	return time.Duration(a.FrameMillis) * time.Millisecond
}

// VADConfig tunes utterance segmentation.
type VADConfig struct {
	// Provider selects the classifier: "silero" or "rms".
	Provider string `yaml:"provider"`

	// ServerURL is the silero scoring endpoint.
	ServerURL string `yaml:"server_url"`

	Threshold        float64 `yaml:"threshold"`
	SilenceTimeoutMS int     `yaml:"silence_timeout_ms"`
	MinSpeechMS      int     `yaml:"min_speech_ms"`
	MaxSpeechMS      int     `yaml:"max_speech_ms"`
	OnsetWaitMS      int     `yaml:"onset_wait_ms"`
}

// SilenceTimeout returns the end-of-utterance silence duration.
func (v VADConfig) SilenceTimeout() time.Duration {
	return time.Duration(v.SilenceTimeoutMS) * time.Millisecond
}

// MinSpeech returns the minimum utterance duration.
func (v VADConfig) MinSpeech() time.Duration {
	return time.Duration(v.MinSpeechMS) * time.Millisecond
}

// MaxSpeech returns the forced-emit utterance cap.
func (v VADConfig) MaxSpeech() time.Duration {
	return time.Duration(v.MaxSpeechMS) * time.Millisecond
}

// OnsetWait returns how long one segmentation pass waits for speech onset.
func (v VADConfig) OnsetWait() time.Duration {
	return time.Duration(v.OnsetWaitMS) * time.Millisecond
}

// STTConfig selects and tunes the transcription backends.
type STTConfig struct {
	// Provider selects the primary backend: "whisperhttp".
	Provider string `yaml:"provider"`

	// ServerURL is the remote transcription server.
	ServerURL string `yaml:"server_url"`

	Model    string `yaml:"model"`
	Language string `yaml:"language"`

	// LocalModelPath, when set, enables the in-process whisper.cpp fallback.
	LocalModelPath string `yaml:"local_model_path"`
}

// TTSConfig selects and tunes the synthesis backend.
type TTSConfig struct {
	// Provider selects the backend: "xtts" or "openai".
	Provider string `yaml:"provider"`

	// ServerURL is the xtts synthesis server.
	ServerURL string `yaml:"server_url"`

	Voice  string  `yaml:"voice"`
	APIKey string  `yaml:"api_key"`
	Model  string  `yaml:"model"`
	Speed  float64 `yaml:"speed"`
}

// AgentConfig tunes the mailbox protocol and turn timing.
type AgentConfig struct {
	InboxPath  string `yaml:"inbox_path"`
	OutboxPath string `yaml:"outbox_path"`

	ReplyTimeoutS         int `yaml:"reply_timeout_s"`
	PollIntervalMS        int `yaml:"poll_interval_ms"`
	SelfInterruptWindowS  int `yaml:"self_interrupt_window_s"`

	// WakePhrases mark rounds as directly addressed to the bot
	// (e.g. "hey jimmy"). Optional.
	WakePhrases []string `yaml:"wake_phrases"`
}

// ReplyTimeout returns the bounded wait for an agent reply.
func (a AgentConfig) ReplyTimeout() time.Duration {
	return time.Duration(a.ReplyTimeoutS) * time.Second
}

// PollInterval returns the outbox polling cadence.
func (a AgentConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMS) * time.Millisecond
}

// SelfInterruptWindow returns the post-speech echo-suppression window.
func (a AgentConfig) SelfInterruptWindow() time.Duration {
	return time.Duration(a.SelfInterruptWindowS) * time.Second
}

// FallbackConfig configures the local LLM responder used when the agent
// misses the reply window. Empty provider disables it.
type FallbackConfig struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	SystemPrompt string   `yaml:"system_prompt"`
	ExtraModels  []string `yaml:"extra_models"`
}

// ArchiveConfig configures the optional Postgres round archive. Empty DSN
// disables it.
type ArchiveConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// RecordingConfig configures raw meeting audio capture to disk.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// TranscriptConfig configures the markdown transcript writer.
type TranscriptConfig struct {
	Dir string `yaml:"dir"`
}

// ApplyDefaults fills unset fields with the standard values the pipeline was
// tuned with.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Meeting.BotName == "" {
		c.Meeting.BotName = "Quorum"
	}
	if c.Meeting.Name == "" {
		c.Meeting.Name = "meeting"
	}

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameMillis == 0 {
		c.Audio.FrameMillis = 500
	}
	if c.Audio.QueueDepth == 0 {
		c.Audio.QueueDepth = 32
	}

	if c.VAD.Provider == "" {
		c.VAD.Provider = "rms"
	}
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = 0.3
	}
	if c.VAD.SilenceTimeoutMS == 0 {
		c.VAD.SilenceTimeoutMS = 1500
	}
	if c.VAD.MinSpeechMS == 0 {
		c.VAD.MinSpeechMS = 1000
	}
	if c.VAD.MaxSpeechMS == 0 {
		c.VAD.MaxSpeechMS = 30000
	}
	if c.VAD.OnsetWaitMS == 0 {
		c.VAD.OnsetWaitMS = 2000
	}

	if c.STT.Provider == "" {
		c.STT.Provider = "whisperhttp"
	}
	if c.STT.Language == "" {
		c.STT.Language = "en"
	}

	if c.TTS.Provider == "" {
		c.TTS.Provider = "xtts"
	}
	if c.TTS.Speed == 0 {
		c.TTS.Speed = 1.0
	}

	if c.Agent.InboxPath == "" {
		c.Agent.InboxPath = "/tmp/quorum-inbox.jsonl"
	}
	if c.Agent.OutboxPath == "" {
		c.Agent.OutboxPath = "/tmp/quorum-outbox.jsonl"
	}
	if c.Agent.ReplyTimeoutS == 0 {
		c.Agent.ReplyTimeoutS = 30
	}
	if c.Agent.PollIntervalMS == 0 {
		c.Agent.PollIntervalMS = 1000
	}
	if c.Agent.SelfInterruptWindowS == 0 {
		c.Agent.SelfInterruptWindowS = 8
	}

	if c.Recording.Dir == "" {
		c.Recording.Dir = "recordings"
	}
	if c.Transcript.Dir == "" {
		c.Transcript.Dir = "transcripts"
	}
}
