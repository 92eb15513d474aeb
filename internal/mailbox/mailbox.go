// Package mailbox implements the file-backed request/response channel between
// the orchestrator and the external decision agent.
//
// The inbox is an append-only JSONL log owned by the agent once written: the
// orchestrator only ever appends "heard" events to it. The outbox is a
// single-slot reply channel with last-write-wins semantics: the orchestrator
// reads the most recent line and truncates the file in one locked operation,
// so if the agent writes twice between polls the earlier reply is lost.
package mailbox

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"
)

// Default file locations, matching what the external agent watches.
const (
	DefaultInboxPath  = "/tmp/quorum-inbox.jsonl"
	DefaultOutboxPath = "/tmp/quorum-outbox.jsonl"
)

// Message is one inbox entry: a single utterance heard in the meeting.
type Message struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	Round   int    `json:"round"`
	TS      string `json:"ts"`
}

// reply is the shape the agent writes to the outbox. Only Text is honored;
// extra fields are ignored.
type reply struct {
	Text string `json:"text"`
}

// Mailbox is the orchestrator side of the channel. Methods are safe to call
// from a single goroutine; cross-process safety on the outbox is provided by
// an advisory flock.
type Mailbox struct {
	inboxPath  string
	outboxPath string
	now        func() time.Time
}

// Option is a functional option for configuring the Mailbox.
type Option func(*Mailbox)

// WithClock overrides the timestamp source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Mailbox) {
		m.now = now
	}
}

// New creates a Mailbox over the given inbox and outbox paths. Empty paths
// fall back to the defaults.
func New(inboxPath, outboxPath string, opts ...Option) *Mailbox {
	if inboxPath == "" {
		inboxPath = DefaultInboxPath
	}
	if outboxPath == "" {
		outboxPath = DefaultOutboxPath
	}
	m := &Mailbox{
		inboxPath:  inboxPath,
		outboxPath: outboxPath,
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Reset truncates both files. Called once at process start so stale messages
// from a previous run never leak into the new session.
func (m *Mailbox) Reset() error {
	var errs []error
	for _, path := range []string{m.inboxPath, m.outboxPath} {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			errs = append(errs, fmt.Errorf("mailbox: reset %s: %w", path, err))
			continue
		}
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mailbox: reset %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// Post appends one heard event to the inbox. The line is written with a
// single Write call so concurrent readers never observe a partial entry.
// A write error is returned to the caller; the round is then abandoned.
func (m *Mailbox) Post(round int, speaker, text string) error {
	msg := Message{
		Type:    "heard",
		Speaker: speaker,
		Text:    text,
		Round:   round,
		TS:      m.now().Format(time.RFC3339),
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailbox: marshal message: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(m.inboxPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("mailbox: open inbox: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("mailbox: append to inbox: %w", err)
	}
	return nil
}

// PollReply reads the most recent reply from the outbox, if any, and clears
// it. The bool reports whether a reply was found. "No reply yet" and
// "outbox unreadable or malformed" both report false with a nil error; only
// the malformed case is logged, at debug level, since during normal
// operation most polls find nothing.
func (m *Mailbox) PollReply() (string, bool, error) {
	f, err := os.OpenFile(m.outboxPath, os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("mailbox: open outbox: %w", err)
	}
	defer f.Close()

	// Advisory lock so an agent appending concurrently cannot interleave
	// with the read-and-truncate. Released implicitly on Close.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return "", false, fmt.Errorf("mailbox: lock outbox: %w", err)
	}

	last, err := lastLine(f)
	if err != nil {
		return "", false, fmt.Errorf("mailbox: read outbox: %w", err)
	}
	if len(last) == 0 {
		return "", false, nil
	}

	var r reply
	if err := json.Unmarshal(last, &r); err != nil {
		// Leave the file alone: a later agent write appends a fresh
		// line and the next poll reads that one instead.
		slog.Debug("ignoring malformed outbox line", "error", err, "len", len(last))
		return "", false, nil
	}

	if err := f.Truncate(0); err != nil {
		return "", false, fmt.Errorf("mailbox: clear outbox: %w", err)
	}
	if r.Text == "" {
		return "", false, nil
	}
	return r.Text, true, nil
}

// lastLine returns the final non-empty line of f, or nil if there is none.
func lastLine(f io.Reader) ([]byte, error) {
	var last []byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := bytes.TrimSpace(sc.Bytes()); len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(last) == 0 {
		return nil, nil
	}
	return last, nil
}
