// Package app wires all Quorum subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run joins the meeting and drives the turn coordinator, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithSession, WithFrameSource, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/quorumbot/quorum/internal/archive/postgres"
	"github.com/quorumbot/quorum/internal/config"
	"github.com/quorumbot/quorum/internal/fallback"
	"github.com/quorumbot/quorum/internal/health"
	"github.com/quorumbot/quorum/internal/mailbox"
	"github.com/quorumbot/quorum/internal/meeting"
	"github.com/quorumbot/quorum/internal/meeting/bridge"
	"github.com/quorumbot/quorum/internal/observe"
	"github.com/quorumbot/quorum/internal/recorder"
	"github.com/quorumbot/quorum/internal/segment"
	"github.com/quorumbot/quorum/internal/speech"
	"github.com/quorumbot/quorum/internal/transcribe"
	"github.com/quorumbot/quorum/internal/transcript"
	"github.com/quorumbot/quorum/internal/trigger"
	"github.com/quorumbot/quorum/internal/turn"
	"github.com/quorumbot/quorum/pkg/audio"
	"github.com/quorumbot/quorum/pkg/audio/opusfeed"
	"github.com/quorumbot/quorum/pkg/audio/pulse"
	"github.com/quorumbot/quorum/pkg/provider/stt"
	"github.com/quorumbot/quorum/pkg/provider/tts"
	"github.com/quorumbot/quorum/pkg/provider/vad"
)

// joinTimeout bounds the meeting join handshake inside Run.
const joinTimeout = 90 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	VAD vad.Classifier
	STT stt.Transcriber

	// STTFallback, when non-nil, is tried after STT trips its breaker.
	STTFallback stt.Transcriber

	TTS tts.Synthesizer

	// Responder answers rounds the agent misses. Optional.
	Responder *fallback.Responder
}

// App owns all subsystem lifetimes and orchestrates the Quorum voice pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	metrics     *observe.Metrics
	mbox        *mailbox.Mailbox
	events      *transcript.Writer
	archive     *postgres.Archive
	session     meeting.Session
	frames      audio.FrameSource
	pump        func(ctx context.Context) error
	rec         *recorder.Recorder
	coordinator *turn.Coordinator
	health      *health.Handler

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSession injects a meeting session instead of dialing the bridge.
func WithSession(s meeting.Session) Option {
	return func(a *App) { a.session = s }
}

// WithFrameSource injects a capture source instead of opening one from config.
func WithFrameSource(src audio.FrameSource) Option {
	return func(a *App) { a.frames = src }
}

// WithHealth injects the health handler the app should attach its readiness
// checks to. When absent, New creates a private one.
func WithHealth(h *health.Handler) Option {
	return func(a *App) { a.health = h }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: mailbox reset, transcript
// creation, archive connection, capture setup, and coordinator assembly.
// Joining the meeting is deferred to Run.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.health == nil {
		a.health = health.NewHandler()
	}

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}
	a.metrics = m

	if err := a.initMailbox(); err != nil {
		return nil, fmt.Errorf("app: init mailbox: %w", err)
	}
	if err := a.initTranscript(); err != nil {
		return nil, fmt.Errorf("app: init transcript: %w", err)
	}
	if err := a.initArchive(ctx); err != nil {
		return nil, fmt.Errorf("app: init archive: %w", err)
	}
	if err := a.initCapture(ctx); err != nil {
		return nil, fmt.Errorf("app: init capture: %w", err)
	}
	if err := a.initRecorder(); err != nil {
		return nil, fmt.Errorf("app: init recorder: %w", err)
	}

	a.initCoordinator()
	a.initHealthChecks()

	return a, nil
}

// Health returns the handler carrying the app's readiness checks, for
// registration on the metrics mux.
func (a *App) Health() *health.Handler {
	return a.health
}

func (a *App) initMailbox() error {
	a.mbox = mailbox.New(a.cfg.Agent.InboxPath, a.cfg.Agent.OutboxPath)
	// Stale messages from a previous run would be replayed as fresh agent
	// replies, so both files start empty.
	if err := a.mbox.Reset(); err != nil {
		return err
	}
	slog.Info("mailbox ready",
		"inbox", a.cfg.Agent.InboxPath,
		"outbox", a.cfg.Agent.OutboxPath,
	)
	return nil
}

func (a *App) initTranscript() error {
	w, err := transcript.NewWriter(
		a.cfg.Transcript.Dir,
		a.cfg.Meeting.Name,
		a.cfg.Meeting.URL,
		a.cfg.Meeting.BotName,
	)
	if err != nil {
		return err
	}
	a.events = w
	return nil
}

func (a *App) initArchive(ctx context.Context) error {
	if a.cfg.Archive.PostgresDSN == "" {
		slog.Info("round archive disabled, no postgres dsn configured")
		return nil
	}
	ar, err := postgres.NewArchive(ctx, a.cfg.Archive.PostgresDSN)
	if err != nil {
		return err
	}
	a.archive = ar
	a.closers = append(a.closers, func() error {
		ar.Close()
		return nil
	})
	return nil
}

// initCapture establishes the incoming audio path. With a bridge configured,
// frames arrive as Opus packets over the websocket and are decoded into a
// bounded queue; otherwise a parec subprocess reads from the sound server,
// drained into the same kind of queue by a pump goroutine. Either way the
// segmenter consumes from a queue that sheds oldest frames, so capture keeps
// real-time pace while the coordinator blocks on transcription, the reply
// window, or playback.
func (a *App) initCapture(ctx context.Context) error {
	if a.frames != nil {
		if a.session == nil {
			a.session = meeting.Nop{}
		}
		return nil
	}

	if a.cfg.Meeting.BridgeURL != "" {
		queue := a.newFrameQueue()

		feed, err := opusfeed.New(queue,
			audio.Format{SampleRate: a.cfg.Audio.SampleRate, Channels: 1},
			a.cfg.Audio.FrameLength(),
		)
		if err != nil {
			return err
		}

		sess, err := bridge.Dial(ctx, a.cfg.Meeting.BridgeURL,
			bridge.WithAudioFeed(feed),
			bridge.WithBotName(a.cfg.Meeting.BotName),
		)
		if err != nil {
			return err
		}
		a.session = sess
		a.frames = queue
		slog.Info("meeting bridge connected", "bridge_url", a.cfg.Meeting.BridgeURL)
		return nil
	}

	src := pulse.NewCaptureSource(a.cfg.Audio.CaptureDevice, a.cfg.Audio.SampleRate, 1)
	a.closers = append(a.closers, src.Close)

	queue := a.newFrameQueue()
	frameLen := a.cfg.Audio.FrameLength()
	a.pump = func(ctx context.Context) error {
		return audio.Pump(ctx, src, frameLen, queue)
	}
	a.frames = queue
	if a.session == nil {
		a.session = meeting.Nop{}
	}
	slog.Info("capturing from sound server", "device", a.cfg.Audio.CaptureDevice)
	return nil
}

func (a *App) newFrameQueue() *audio.FrameQueue {
	queue := audio.NewFrameQueue(a.cfg.Audio.QueueDepth)
	queue.OnDrop = func(audio.AudioFrame) {
		a.metrics.FramesDropped.Add(context.Background(), 1)
	}
	return queue
}

func (a *App) initRecorder() error {
	if !a.cfg.Recording.Enabled {
		return nil
	}
	rec, err := recorder.New(a.cfg.Recording.Dir, a.cfg.Audio.SampleRate, 1)
	if err != nil {
		return err
	}
	a.rec = rec
	a.frames = &recordingSource{src: a.frames, rec: rec}
	a.closers = append(a.closers, rec.Close)
	slog.Info("session recording enabled", "path", rec.Path())
	return nil
}

func (a *App) initCoordinator() {
	seg := segment.New(a.frames, a.providers.VAD, segment.Config{
		FrameLength:     a.cfg.Audio.FrameLength(),
		SampleRate:      a.cfg.Audio.SampleRate,
		SpeechThreshold: a.cfg.VAD.Threshold,
		SilenceTimeout:  a.cfg.VAD.SilenceTimeout(),
		MinSpeech:       a.cfg.VAD.MinSpeech(),
		MaxSpeech:       a.cfg.VAD.MaxSpeech(),
		OnsetWait:       a.cfg.VAD.OnsetWait(),
	})

	sttOpts := []transcribe.Option{transcribe.WithMetrics(a.metrics)}
	if a.providers.STTFallback != nil {
		sttOpts = append(sttOpts, transcribe.WithFallback(a.providers.STTFallback))
	}
	transcriber := transcribe.New(a.providers.STT, a.cfg.STT.Language, sttOpts...)

	sink := &pulse.PlaybackSink{Device: a.cfg.Audio.PlaybackDevice}
	speaker := speech.New(a.providers.TTS, sink,
		audio.Format{SampleRate: a.cfg.Audio.SampleRate, Channels: 1},
		speech.WithMetrics(a.metrics),
	)

	turnOpts := []turn.Option{
		turn.WithEventLog(a.events),
		turn.WithMetrics(a.metrics),
	}
	if a.archive != nil {
		turnOpts = append(turnOpts, turn.WithArchive(&archiveAdapter{
			archive: a.archive,
			meeting: a.cfg.Meeting.Name,
		}))
	}
	if a.providers.Responder != nil {
		turnOpts = append(turnOpts, turn.WithResponder(a.providers.Responder))
	}
	if len(a.cfg.Agent.WakePhrases) > 0 {
		turnOpts = append(turnOpts, turn.WithTrigger(trigger.New(a.cfg.Agent.WakePhrases)))
	}

	a.coordinator = turn.New(turn.Config{
		SelfInterruptWindow: a.cfg.Agent.SelfInterruptWindow(),
		ReplyTimeout:        a.cfg.Agent.ReplyTimeout(),
		PollInterval:        a.cfg.Agent.PollInterval(),
		BotName:             a.cfg.Meeting.BotName,
	}, seg, transcriber, speaker, a.mbox, a.session, turnOpts...)
}

func (a *App) initHealthChecks() {
	a.health.AddCheck("inbox", health.FileWritable(a.cfg.Agent.InboxPath))
	a.health.AddCheck("outbox", health.FileWritable(a.cfg.Agent.OutboxPath))
	if a.cfg.STT.ServerURL != "" {
		a.health.AddCheck("stt", health.HTTPReachable(nil, a.cfg.STT.ServerURL))
	}
	if a.cfg.TTS.ServerURL != "" {
		a.health.AddCheck("tts", health.HTTPReachable(nil, a.cfg.TTS.ServerURL))
	}
	if a.archive != nil {
		a.health.AddCheck("archive", a.archive.Ping)
	}
}

// Run joins the meeting (when one is configured) and drives the turn
// coordinator until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Meeting.URL != "" {
		joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
		err := a.session.Join(joinCtx, a.cfg.Meeting.URL)
		cancel()
		if err != nil {
			return fmt.Errorf("app: join meeting: %w", err)
		}
		if err := a.events.RecordEvent("joined meeting"); err != nil {
			slog.Warn("transcript write failed", "error", err)
		}
		slog.Info("joined meeting", "url", a.cfg.Meeting.URL, "bot", a.cfg.Meeting.BotName)
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.pump != nil {
		g.Go(func() error {
			return a.pump(ctx)
		})
	}
	g.Go(func() error {
		return a.coordinator.Run(ctx)
	})
	return g.Wait()
}

// Shutdown leaves the meeting and runs all closers in registration order.
// Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.events.RecordEvent("meeting ended"); err != nil {
			slog.Warn("transcript write failed", "error", err)
		}

		// Leave the meeting first so the capture stream drains.
		if err := a.session.Close(); err != nil {
			slog.Warn("session close error", "error", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// recordingSource tees every captured frame into the session recorder on its
// way to the segmenter.
type recordingSource struct {
	src audio.FrameSource
	rec *recorder.Recorder

	warned sync.Once
}

// NextFrame implements [audio.FrameSource].
func (r *recordingSource) NextFrame(ctx context.Context, d time.Duration) (audio.AudioFrame, error) {
	f, err := r.src.NextFrame(ctx, d)
	if err != nil {
		return f, err
	}
	if werr := r.rec.Write(f); werr != nil {
		r.warned.Do(func() {
			slog.Warn("session recording failed, audio continues without it", "error", werr)
		})
	}
	return f, nil
}

// archiveAdapter bridges the coordinator's archiving hook to the postgres
// store. Insert failures are logged, never surfaced: losing an archive row
// must not stall the conversation.
type archiveAdapter struct {
	archive *postgres.Archive
	meeting string
}

// ArchiveRound implements [turn.RoundArchiver].
func (ad *archiveAdapter) ArchiveRound(ctx context.Context, roundID int, speaker, heard, reply, source string, heardAt time.Time, d time.Duration) {
	err := ad.archive.InsertRound(ctx, postgres.Round{
		Meeting:   ad.meeting,
		RoundID:   roundID,
		Speaker:   speaker,
		HeardText: heard,
		ReplyText: reply,
		Source:    source,
		HeardAt:   heardAt,
		Duration:  d,
	})
	if err != nil {
		slog.Warn("round archive insert failed", "round", roundID, "error", err)
	}
}
