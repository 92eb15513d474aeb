package mailbox

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestMailbox(t *testing.T) (*Mailbox, string, string) {
	t.Helper()
	dir := t.TempDir()
	inbox := filepath.Join(dir, "inbox.jsonl")
	outbox := filepath.Join(dir, "outbox.jsonl")
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	m := New(inbox, outbox, WithClock(func() time.Time { return fixed }))
	return m, inbox, outbox
}

func TestPostAppendsJSONLines(t *testing.T) {
	m, inbox, _ := newTestMailbox(t)

	if err := m.Post(1, "Alice", "turn on the lights"); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	if err := m.Post(2, "", "and the heating"); err != nil {
		t.Fatalf("Post() error: %v", err)
	}

	f, err := os.Open(inbox)
	if err != nil {
		t.Fatalf("open inbox: %v", err)
	}
	defer f.Close()

	var msgs []Message
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var msg Message
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			t.Fatalf("unmarshal inbox line %q: %v", sc.Text(), err)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) != 2 {
		t.Fatalf("inbox has %d entries, want 2", len(msgs))
	}
	if msgs[0].Type != "heard" || msgs[0].Round != 1 || msgs[0].Text != "turn on the lights" {
		t.Fatalf("unexpected first entry: %+v", msgs[0])
	}
	if msgs[0].Speaker != "Alice" {
		t.Fatalf("speaker = %q, want Alice", msgs[0].Speaker)
	}
	if msgs[0].TS != "2026-03-14T09:26:53Z" {
		t.Fatalf("ts = %q, want fixed RFC3339 timestamp", msgs[0].TS)
	}
	if msgs[1].Round != 2 {
		t.Fatalf("second round = %d, want 2", msgs[1].Round)
	}
}

func TestPollReplyRoundTrip(t *testing.T) {
	m, _, outbox := newTestMailbox(t)

	if err := m.Post(1, "", "hello"); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	if err := os.WriteFile(outbox, []byte(`{"text":"hi there"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write outbox: %v", err)
	}

	text, ok, err := m.PollReply()
	if err != nil {
		t.Fatalf("PollReply() error: %v", err)
	}
	if !ok || text != "hi there" {
		t.Fatalf("PollReply() = (%q, %v), want (hi there, true)", text, ok)
	}

	// The read clears the outbox: a second poll finds nothing.
	text, ok, err = m.PollReply()
	if err != nil {
		t.Fatalf("second PollReply() error: %v", err)
	}
	if ok || text != "" {
		t.Fatalf("second PollReply() = (%q, %v), want (empty, false)", text, ok)
	}
	data, err := os.ReadFile(outbox)
	if err != nil {
		t.Fatalf("read outbox: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("outbox not cleared, %d bytes remain", len(data))
	}
}

func TestPollReplyLastWriteWins(t *testing.T) {
	m, _, outbox := newTestMailbox(t)

	lines := `{"text":"first reply"}` + "\n" + `{"text":"second reply"}` + "\n"
	if err := os.WriteFile(outbox, []byte(lines), 0o644); err != nil {
		t.Fatalf("write outbox: %v", err)
	}

	text, ok, err := m.PollReply()
	if err != nil {
		t.Fatalf("PollReply() error: %v", err)
	}
	if !ok || text != "second reply" {
		t.Fatalf("PollReply() = (%q, %v), want (second reply, true)", text, ok)
	}
}

func TestPollReplyMissingFile(t *testing.T) {
	m, _, _ := newTestMailbox(t)

	text, ok, err := m.PollReply()
	if err != nil {
		t.Fatalf("PollReply() error: %v", err)
	}
	if ok || text != "" {
		t.Fatalf("PollReply() = (%q, %v), want (empty, false)", text, ok)
	}
}

func TestPollReplyMalformedLine(t *testing.T) {
	m, _, outbox := newTestMailbox(t)

	if err := os.WriteFile(outbox, []byte("not json\n"), 0o644); err != nil {
		t.Fatalf("write outbox: %v", err)
	}

	text, ok, err := m.PollReply()
	if err != nil {
		t.Fatalf("PollReply() error: %v", err)
	}
	if ok || text != "" {
		t.Fatalf("PollReply() = (%q, %v), want (empty, false)", text, ok)
	}

	// The malformed line stays so a later agent append supersedes it.
	if err := os.WriteFile(outbox, []byte("not json\n"+`{"text":"recovered"}`+"\n"), 0o644); err != nil {
		t.Fatalf("rewrite outbox: %v", err)
	}
	text, ok, err = m.PollReply()
	if err != nil {
		t.Fatalf("PollReply() error: %v", err)
	}
	if !ok || text != "recovered" {
		t.Fatalf("PollReply() = (%q, %v), want (recovered, true)", text, ok)
	}
}

func TestResetTruncatesBothFiles(t *testing.T) {
	m, inbox, outbox := newTestMailbox(t)

	if err := m.Post(1, "", "stale"); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	if err := os.WriteFile(outbox, []byte(`{"text":"stale"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write outbox: %v", err)
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	for _, path := range []string{inbox, outbox} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if len(data) != 0 {
			t.Fatalf("%s not truncated, %d bytes remain", path, len(data))
		}
	}
}
