package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quorumbot/quorum/internal/config"
	meetingmock "github.com/quorumbot/quorum/internal/meeting/mock"
	"github.com/quorumbot/quorum/pkg/audio"
	audiomock "github.com/quorumbot/quorum/pkg/audio/mock"
	sttmock "github.com/quorumbot/quorum/pkg/provider/stt/mock"
	ttsmock "github.com/quorumbot/quorum/pkg/provider/tts/mock"
	vadmock "github.com/quorumbot/quorum/pkg/provider/vad/mock"
	"github.com/quorumbot/quorum/pkg/provider/vad/rms"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Meeting.Name = "standup"
	cfg.Agent.InboxPath = filepath.Join(dir, "inbox.jsonl")
	cfg.Agent.OutboxPath = filepath.Join(dir, "outbox.jsonl")
	cfg.Transcript.Dir = filepath.Join(dir, "transcripts")
	cfg.Recording.Enabled = false
	cfg.Recording.Dir = filepath.Join(dir, "recordings")
	cfg.STT.ServerURL = "" // no live reachability checks in tests
	cfg.TTS.ServerURL = ""
	return cfg
}

func testProviders() *Providers {
	return &Providers{
		VAD: &vadmock.Classifier{},
		STT: &sttmock.Transcriber{Text: "hello there everyone"},
		TTS: &ttsmock.Synthesizer{},
	}
}

func newTestApp(t *testing.T, cfg *config.Config, session *meetingmock.Session) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, testProviders(),
		WithSession(session),
		WithFrameSource(&audiomock.Source{BlockWhenEmpty: true}),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return a
}

func TestNewWiresPipeline(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg, &meetingmock.Session{})

	// The mailbox reset must have left both files empty on disk.
	for _, path := range []string{cfg.Agent.InboxPath, cfg.Agent.OutboxPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("mailbox file %s missing: %v", path, err)
		}
		if info.Size() != 0 {
			t.Errorf("mailbox file %s not empty after reset", path)
		}
	}

	// A transcript with the header must exist.
	entries, err := os.ReadDir(cfg.Transcript.Dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ReadDir(%s) = %v, %v; want one transcript", cfg.Transcript.Dir, entries, err)
	}
	if !strings.HasSuffix(entries[0].Name(), "_standup.md") {
		t.Errorf("transcript name %q, want *_standup.md", entries[0].Name())
	}

	// Readiness must pass with the mailbox checks in place.
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	a.Health().Readyz(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRunJoinsConfiguredMeeting(t *testing.T) {
	cfg := testConfig(t)
	cfg.Meeting.URL = "https://meet.example.com/abc-defg-hij"
	session := &meetingmock.Session{}
	a := newTestApp(t, cfg, session)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if len(session.JoinedURLs) != 1 || session.JoinedURLs[0] != cfg.Meeting.URL {
		t.Errorf("joined %v, want the configured meeting URL", session.JoinedURLs)
	}
}

func TestRunSkipsJoinWithoutMeetingURL(t *testing.T) {
	cfg := testConfig(t)
	session := &meetingmock.Session{}
	a := newTestApp(t, cfg, session)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}

	if len(session.JoinedURLs) != 0 {
		t.Errorf("joined %v, want no join in audio-only mode", session.JoinedURLs)
	}
}

func TestShutdownClosesSubsystems(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.Enabled = true
	session := &meetingmock.Session{}
	a := newTestApp(t, cfg, session)

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if !session.Closed {
		t.Error("session not closed")
	}

	recs, err := os.ReadDir(cfg.Recording.Dir)
	if err != nil || len(recs) != 1 {
		t.Fatalf("ReadDir(%s) = %v, %v; want one recording", cfg.Recording.Dir, recs, err)
	}
	if !strings.HasSuffix(recs[0].Name(), ".wav") {
		t.Errorf("recording name %q, want a .wav file", recs[0].Name())
	}

	// Second Shutdown is a no-op.
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
}

// conversationFrames scripts 2s of silence, 3s of speech, 2s of silence as
// 500ms capture frames. The speech frames carry a constant int16 amplitude of
// 8000, well above the energy classifier's threshold.
func conversationFrames() []audio.AudioFrame {
	loud := make([]byte, 16000)
	for i := 0; i < len(loud); i += 2 {
		loud[i], loud[i+1] = 0x40, 0x1F
	}
	var frames []audio.AudioFrame
	var ts time.Duration
	push := func(data []byte) {
		frames = append(frames, audio.AudioFrame{Data: data, SampleRate: 16000, Channels: 1, Timestamp: ts})
		ts += 500 * time.Millisecond
	}
	for i := 0; i < 4; i++ {
		push(make([]byte, 16000))
	}
	for i := 0; i < 6; i++ {
		push(loud)
	}
	for i := 0; i < 4; i++ {
		push(make([]byte, 16000))
	}
	return frames
}

// waitInboxLine polls the inbox file until a line has been posted and returns
// the parsed last line.
func waitInboxLine(t *testing.T, path string) (line struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Round   int    `json:"round"`
}) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil {
			if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
				lines := strings.Split(trimmed, "\n")
				if err := json.Unmarshal([]byte(lines[len(lines)-1]), &line); err != nil {
					t.Fatalf("unmarshal inbox line: %v", err)
				}
				return line
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no line posted to the inbox")
	return line
}

// TestConversationRoundEndToEnd pushes a scripted capture stream through the
// real segmenter, coordinator, and file mailbox: one utterance is detected,
// transcribed, posted as a round, answered through the outbox, and the answer
// synthesized.
func TestConversationRoundEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.ReplyTimeoutS = 5
	cfg.Agent.PollIntervalMS = 20

	stt := &sttmock.Transcriber{Text: "could you give a quick status update"}
	tts := &ttsmock.Synthesizer{}
	session := &meetingmock.Session{Speaker: "Alice"}
	a, err := New(context.Background(), cfg,
		&Providers{VAD: &rms.Classifier{}, STT: stt, TTS: tts},
		WithSession(session),
		WithFrameSource(&audiomock.Source{Frames: conversationFrames(), BlockWhenEmpty: true}),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	line := waitInboxLine(t, cfg.Agent.InboxPath)
	if line.Type != "heard" || line.Round != 1 {
		t.Errorf("inbox line type %q round %d, want heard round 1", line.Type, line.Round)
	}
	if line.Speaker != "Alice" {
		t.Errorf("inbox speaker %q, want Alice", line.Speaker)
	}
	if line.Text != stt.Text {
		t.Errorf("inbox text %q, want %q", line.Text, stt.Text)
	}

	// Play the agent: answer the posted round through the outbox.
	if err := os.WriteFile(cfg.Agent.OutboxPath, []byte(`{"text":"Status is green."}`+"\n"), 0o644); err != nil {
		t.Fatalf("write outbox: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for tts.CallCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if got := tts.CallCount(); got != 1 {
		t.Fatalf("synthesis calls = %d, want 1", got)
	}
	if tts.Texts[0] != "Status is green." {
		t.Errorf("synthesized %q, want the agent reply", tts.Texts[0])
	}
	if got := stt.CallCount(); got != 1 {
		t.Fatalf("transcribe calls = %d, want 1", got)
	}
	// 3s of speech plus the 1.5s of trailing silence that closed the
	// utterance: 4.5s of 16kHz mono PCM.
	if call := stt.Calls[0]; call.PCMLen != 144000 || call.SampleRate != 16000 {
		t.Errorf("transcribed %d bytes at %d Hz, want 144000 at 16000", call.PCMLen, call.SampleRate)
	}
}

// TestConversationRoundTimeout runs the same scripted stream with a silent
// agent: the round must be posted, time out without a synthesis, and leave a
// timeout event in the transcript.
func TestConversationRoundTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.ReplyTimeoutS = 1
	cfg.Agent.PollIntervalMS = 20

	stt := &sttmock.Transcriber{Text: "could you give a quick status update"}
	tts := &ttsmock.Synthesizer{}
	a, err := New(context.Background(), cfg,
		&Providers{VAD: &rms.Classifier{}, STT: stt, TTS: tts},
		WithSession(&meetingmock.Session{Speaker: "Alice"}),
		WithFrameSource(&audiomock.Source{Frames: conversationFrames(), BlockWhenEmpty: true}),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	line := waitInboxLine(t, cfg.Agent.InboxPath)
	if line.Round != 1 {
		t.Errorf("inbox round = %d, want 1", line.Round)
	}

	entries, err := os.ReadDir(cfg.Transcript.Dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ReadDir(%s) = %v, %v; want one transcript", cfg.Transcript.Dir, entries, err)
	}
	transcriptPath := filepath.Join(cfg.Transcript.Dir, entries[0].Name())

	deadline := time.Now().Add(5 * time.Second)
	var transcript string
	for time.Now().Before(deadline) {
		data, _ := os.ReadFile(transcriptPath)
		transcript = string(data)
		if strings.Contains(transcript, "timed out") {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if !strings.Contains(transcript, "timed out") {
		t.Error("transcript missing the round timeout event")
	}
	if got := tts.CallCount(); got != 0 {
		t.Errorf("synthesis calls = %d, want 0 on a timed-out round", got)
	}
}
