// Command quorum is the main entry point for the Quorum meeting bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
	oai "github.com/openai/openai-go"

	"github.com/quorumbot/quorum/internal/app"
	"github.com/quorumbot/quorum/internal/config"
	"github.com/quorumbot/quorum/internal/fallback"
	"github.com/quorumbot/quorum/internal/health"
	"github.com/quorumbot/quorum/internal/observe"
	"github.com/quorumbot/quorum/pkg/provider/stt"
	"github.com/quorumbot/quorum/pkg/provider/stt/whisperhttp"
	"github.com/quorumbot/quorum/pkg/provider/stt/whisperlocal"
	"github.com/quorumbot/quorum/pkg/provider/tts"
	ttsopenai "github.com/quorumbot/quorum/pkg/provider/tts/openai"
	"github.com/quorumbot/quorum/pkg/provider/tts/xtts"
	"github.com/quorumbot/quorum/pkg/provider/vad"
	"github.com/quorumbot/quorum/pkg/provider/vad/rms"
	"github.com/quorumbot/quorum/pkg/provider/vad/silero"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "quorum: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "quorum: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("quorum starting",
		"config", *configPath,
		"meeting", cfg.Meeting.Name,
		"bot", cfg.Meeting.BotName,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The health handler is created up front so the metrics mux can serve
	// /healthz and /readyz; the app attaches its checks during New.
	h := health.NewHandler()
	obsShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "quorum",
		ListenAddr:  cfg.Server.ListenAddr,
	}, h.Register)
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithHealth(h))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("bot ready — press Ctrl+C to leave the meeting")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if err := obsShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("silero", func(entry config.VADConfig) (vad.Classifier, error) {
		return silero.New(entry.ServerURL)
	})

	reg.RegisterVAD("rms", func(config.VADConfig) (vad.Classifier, error) {
		return &rms.Classifier{}, nil
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisperhttp", func(entry config.STTConfig) (stt.Transcriber, error) {
		var opts []whisperhttp.Option
		if entry.Model != "" {
			opts = append(opts, whisperhttp.WithModel(entry.Model))
		}
		return whisperhttp.New(entry.ServerURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("xtts", func(entry config.TTSConfig) (tts.Synthesizer, error) {
		var opts []xtts.Option
		if entry.Speed != 0 {
			opts = append(opts, xtts.WithSpeed(entry.Speed))
		}
		return xtts.New(entry.ServerURL, entry.Voice, entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.TTSConfig) (tts.Synthesizer, error) {
		var opts []ttsopenai.Option
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(oai.SpeechModel(entry.Model)))
		}
		if entry.Speed != 0 {
			opts = append(opts, ttsopenai.WithSpeed(entry.Speed))
		}
		return ttsopenai.New(entry.APIKey, entry.Voice, opts...)
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	p, err := reg.CreateVAD(cfg.VAD)
	if err != nil {
		return nil, fmt.Errorf("create vad provider %q: %w", cfg.VAD.Provider, err)
	}
	ps.VAD = p
	slog.Info("provider created", "kind", "vad", "name", cfg.VAD.Provider)

	s, err := reg.CreateSTT(cfg.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.STT.Provider, err)
	}
	ps.STT = s
	slog.Info("provider created", "kind", "stt", "name", cfg.STT.Provider)

	if cfg.STT.LocalModelPath != "" {
		eng, err := whisperlocal.New(cfg.STT.LocalModelPath, whisperlocal.WithLanguage(cfg.STT.Language))
		if err != nil {
			return nil, fmt.Errorf("create stt fallback: %w", err)
		}
		ps.STTFallback = eng
		slog.Info("provider created", "kind", "stt-fallback", "name", "whisperlocal",
			"model", cfg.STT.LocalModelPath)
	}

	t, err := reg.CreateTTS(cfg.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.TTS.Provider, err)
	}
	ps.TTS = t
	slog.Info("provider created", "kind", "tts", "name", cfg.TTS.Provider)

	if cfg.Fallback.Provider != "" {
		r, err := buildResponder(cfg.Fallback)
		if err != nil {
			return nil, fmt.Errorf("create fallback responder: %w", err)
		}
		ps.Responder = r
		slog.Info("provider created", "kind", "fallback", "name", cfg.Fallback.Provider,
			"model", cfg.Fallback.Model, "extra_models", len(cfg.Fallback.ExtraModels))
	}

	return ps, nil
}

// buildResponder assembles the local-LLM responder: the configured model
// first, then any extra models on the same provider as fallbacks.
func buildResponder(cfg config.FallbackConfig) (*fallback.Responder, error) {
	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}

	backend, err := createLLMBackend(cfg.Provider, opts...)
	if err != nil {
		return nil, err
	}

	var respOpts []fallback.Option
	for _, model := range cfg.ExtraModels {
		respOpts = append(respOpts, fallback.WithFallbackModel(model,
			fallback.ProviderBackend{Provider: backend, Model: model}))
	}

	return fallback.New(cfg.SystemPrompt, cfg.Model,
		fallback.ProviderBackend{Provider: backend, Model: cfg.Model},
		respOpts...,
	), nil
}

// createLLMBackend creates the underlying any-llm-go provider for the given
// provider name.
func createLLMBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported fallback provider %q", providerName)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Quorum — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("VAD", cfg.VAD.Provider, "")
	printProvider("STT", cfg.STT.Provider, cfg.STT.Model)
	printProvider("TTS", cfg.TTS.Provider, cfg.TTS.Model)
	printProvider("Fallback LLM", cfg.Fallback.Provider, cfg.Fallback.Model)
	if cfg.Meeting.BridgeURL != "" {
		fmt.Printf("║  Audio source    : %-19s ║\n", "meeting bridge")
	} else {
		fmt.Printf("║  Audio source    : %-19s ║\n", "sound server")
	}
	if cfg.Archive.PostgresDSN != "" {
		fmt.Printf("║  Round archive   : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Round archive   : %-19s ║\n", "(disabled)")
	}
	if cfg.Recording.Enabled {
		fmt.Printf("║  Recording       : %-19s ║\n", cfg.Recording.Dir)
	} else {
		fmt.Printf("║  Recording       : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	if name == "" {
		name = "(disabled)"
	}
	if model != "" {
		name = name + " / " + model
	}
	fmt.Printf("║  %-15s : %-19s ║\n", kind, name)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
