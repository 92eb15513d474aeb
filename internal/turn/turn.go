// Package turn runs the top-level conversation loop: listen for an
// utterance, transcribe it, hand it to the external agent through the
// mailbox, and speak whatever comes back.
//
// The loop owns all turn-taking state. Rounds are strictly sequential; a new
// utterance is not considered until the previous round has been spoken,
// timed out, or been discarded. Replies that arrive after their round timed
// out are still spoken, drained opportunistically at the top of each
// iteration.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quorumbot/quorum/internal/meeting"
	"github.com/quorumbot/quorum/internal/observe"
	"github.com/quorumbot/quorum/internal/transcribe"
	"github.com/quorumbot/quorum/internal/trigger"
	"github.com/quorumbot/quorum/pkg/audio"
)

// Segmenter yields the next complete utterance, or (nil, nil) when no speech
// onset was seen within its bounded wait.
type Segmenter interface {
	Next(ctx context.Context) (*audio.Utterance, error)
}

// Transcriber converts an utterance into filtered text ("" means nothing
// actionable).
type Transcriber interface {
	Transcribe(ctx context.Context, utt *audio.Utterance) string
}

// Speaker plays reply text into the meeting.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Mailbox is the request/response channel to the external agent.
type Mailbox interface {
	Post(round int, speaker, text string) error
	PollReply() (text string, ok bool, err error)
}

// Responder produces a local reply when the agent misses the window.
type Responder interface {
	Reply(ctx context.Context, heard string) (string, error)
}

// EventLog receives transcript entries. Satisfied by *transcript.Writer.
type EventLog interface {
	Record(speaker, text string) error
	RecordEvent(text string) error
}

// RoundArchiver persists completed rounds. Satisfied by *postgres.Archive
// via a thin adapter in the app.
type RoundArchiver interface {
	ArchiveRound(ctx context.Context, roundID int, speaker, heard, reply, source string, heardAt time.Time, d time.Duration)
}

// State is the mutable turn-taking state, owned exclusively by the
// Coordinator.
type State struct {
	lastSpeakTime time.Time
	roundCounter  int
}

// Config holds the coordinator timing knobs.
type Config struct {
	// SelfInterruptWindow is how long after the bot finishes speaking that
	// incoming "speech" is treated as echo of its own output.
	SelfInterruptWindow time.Duration

	// ReplyTimeout bounds the wait for an agent reply per round.
	ReplyTimeout time.Duration

	// PollInterval is the outbox polling cadence inside the reply wait.
	PollInterval time.Duration

	// BotName attributes the bot's own lines in the transcript.
	BotName string
}

func (c *Config) applyDefaults() {
	if c.SelfInterruptWindow == 0 {
		c.SelfInterruptWindow = 8 * time.Second
	}
	if c.ReplyTimeout == 0 {
		c.ReplyTimeout = 30 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.BotName == "" {
		c.BotName = "Quorum"
	}
}

// Coordinator sequences segmentation, transcription, mailbox traffic, and
// synthesis. Run from a single goroutine.
type Coordinator struct {
	cfg     Config
	seg     Segmenter
	stt     Transcriber
	speaker Speaker
	mailbox Mailbox
	session meeting.Session

	responder Responder
	events    EventLog
	archive   RoundArchiver
	detector  *trigger.Detector
	metrics   *observe.Metrics

	state State
	now   func() time.Time
}

// Option is a functional option for configuring the Coordinator.
type Option func(*Coordinator)

// WithResponder enables the local LLM fallback on reply timeout.
func WithResponder(r Responder) Option {
	return func(c *Coordinator) { c.responder = r }
}

// WithEventLog mirrors rounds into a transcript.
func WithEventLog(e EventLog) Option {
	return func(c *Coordinator) { c.events = e }
}

// WithArchive persists rounds after completion.
func WithArchive(a RoundArchiver) Option {
	return func(c *Coordinator) { c.archive = a }
}

// WithTrigger annotates rounds that address the bot by name.
func WithTrigger(d *trigger.Detector) Option {
	return func(c *Coordinator) { c.detector = d }
}

// WithMetrics records round counters and latencies.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator. session may be [meeting.Nop] for audio-only
// operation.
func New(cfg Config, seg Segmenter, stt Transcriber, speaker Speaker, mbox Mailbox, session meeting.Session, opts ...Option) *Coordinator {
	cfg.applyDefaults()
	c := &Coordinator{
		cfg:     cfg,
		seg:     seg,
		stt:     stt,
		speaker: speaker,
		mailbox: mbox,
		session: session,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes the conversation loop until ctx is cancelled. The current
// iteration always completes before Run returns, so no mailbox write or
// playback is abandoned midway.
func (c *Coordinator) Run(ctx context.Context) error {
	slog.Info("turn coordinator started",
		"self_interrupt_window", c.cfg.SelfInterruptWindow,
		"reply_timeout", c.cfg.ReplyTimeout,
	)
	for {
		if err := ctx.Err(); err != nil {
			slog.Info("turn coordinator stopping", "rounds", c.state.roundCounter)
			return err
		}

		c.drainOutOfBand(ctx)

		utt, err := c.seg.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.Warn("segmenter failed, retrying", "error", err)
			continue
		}
		if utt == nil {
			// No speech onset within the bounded wait.
			continue
		}
		if c.metrics != nil {
			c.metrics.Utterances.Add(ctx, 1)
		}

		text := c.stt.Transcribe(ctx, utt)
		if !transcribe.Actionable(text) {
			slog.Debug("utterance not actionable", "text", text, "duration", utt.Duration)
			continue
		}

		// Speech heard shortly after our own output is presumed to be
		// acoustic echo of it, whatever the audio path did about echo.
		if since := c.now().Sub(c.state.lastSpeakTime); !c.state.lastSpeakTime.IsZero() && since < c.cfg.SelfInterruptWindow {
			slog.Debug("discarding presumed self-echo",
				"text", text,
				"since_last_speak", since,
			)
			continue
		}

		c.runRound(ctx, utt, text)
	}
}

// drainOutOfBand speaks a reply left in the outbox by a round that already
// timed out locally.
func (c *Coordinator) drainOutOfBand(ctx context.Context) {
	reply, ok, err := c.mailbox.PollReply()
	if err != nil {
		slog.Warn("out-of-band poll failed", "error", err)
		return
	}
	if !ok {
		return
	}
	slog.Info("speaking late agent reply", "len", len(reply))
	c.speak(ctx, reply)
}

// runRound executes steps post→poll→speak for one accepted utterance.
func (c *Coordinator) runRound(ctx context.Context, utt *audio.Utterance, text string) {
	c.state.roundCounter++
	round := c.state.roundCounter
	started := c.now()

	speaker := c.session.ActiveSpeaker()
	if speaker == "" {
		speaker = "Unknown"
	}

	attrs := []any{"round", round, "speaker", speaker, "text", text}
	if c.detector != nil {
		if phrase, addressed := c.detector.Addressed(text); addressed {
			attrs = append(attrs, "wake_phrase", phrase)
		}
	}
	slog.Info("heard", attrs...)
	c.logEvent(func(e EventLog) error { return e.Record(speaker, text) })

	if err := c.mailbox.Post(round, speaker, text); err != nil {
		slog.Error("mailbox post failed, abandoning round", "round", round, "error", err)
		c.logEvent(func(e EventLog) error {
			return e.RecordEvent(fmt.Sprintf("round %d abandoned: mailbox write failed", round))
		})
		return
	}

	reply, source := c.awaitReply(ctx, round, text)
	if reply == "" {
		c.archiveRound(ctx, round, speaker, text, "", "", started)
		return
	}

	c.speak(ctx, reply)
	c.logEvent(func(e EventLog) error { return e.Record(c.cfg.BotName, reply) })
	c.archiveRound(ctx, round, speaker, text, reply, source, started)

	if c.metrics != nil {
		c.metrics.Rounds.Add(ctx, 1)
		c.metrics.RoundDuration.Record(ctx, c.now().Sub(started).Seconds())
	}
}

// awaitReply polls the outbox until a reply appears or the window closes.
// On timeout it falls back to the local responder when one is configured.
// source is "agent" or "fallback"; an empty reply means the round stays
// silent.
func (c *Coordinator) awaitReply(ctx context.Context, round int, heard string) (reply, source string) {
	deadline := c.now().Add(c.cfg.ReplyTimeout)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for c.now().Before(deadline) {
		select {
		case <-ctx.Done():
			slog.Info("shutdown during reply wait, abandoning round", "round", round)
			return "", ""
		case <-ticker.C:
		}

		text, ok, err := c.mailbox.PollReply()
		if err != nil {
			slog.Warn("reply poll failed", "round", round, "error", err)
			continue
		}
		if ok {
			return text, "agent"
		}
	}

	slog.Warn("no agent reply within window",
		"round", round,
		"timeout", c.cfg.ReplyTimeout,
	)
	if c.metrics != nil {
		c.metrics.RoundTimeouts.Add(ctx, 1)
	}
	c.logEvent(func(e EventLog) error {
		return e.RecordEvent(fmt.Sprintf("round %d timed out after %s", round, c.cfg.ReplyTimeout))
	})

	if c.responder == nil {
		return "", ""
	}
	text, err := c.responder.Reply(ctx, heard)
	if err != nil {
		slog.Warn("fallback responder failed", "round", round, "error", err)
		return "", ""
	}
	return text, "fallback"
}

// speak plays text and stamps the echo-suppression clock. The stamp is
// written even when playback partially fails; whatever audio did go out can
// still echo back.
func (c *Coordinator) speak(ctx context.Context, text string) {
	if err := c.speaker.Speak(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("failed to speak reply", "error", err)
	}
	c.state.lastSpeakTime = c.now()
}

func (c *Coordinator) archiveRound(ctx context.Context, round int, speaker, heard, reply, source string, started time.Time) {
	if c.archive == nil {
		return
	}
	c.archive.ArchiveRound(ctx, round, speaker, heard, reply, source, started, c.now().Sub(started))
}

func (c *Coordinator) logEvent(fn func(EventLog) error) {
	if c.events == nil {
		return
	}
	if err := fn(c.events); err != nil {
		slog.Warn("transcript write failed", "error", err)
	}
}
