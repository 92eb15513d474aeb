// Package transcript writes a running markdown transcript of the meeting.
//
// The file is rewritten in full on every entry so a reader tailing it (or
// opening it mid-meeting) always sees a well-formed document with the header
// intact. Entries are kept in memory for the lifetime of the writer; meetings
// are hours, not weeks, so the buffer stays small.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Writer accumulates transcript entries and mirrors them to a markdown file.
// Safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	path  string
	url   string
	bot   string
	start time.Time
	lines []string
	now   func() time.Time
}

// Option is a functional option for configuring the Writer.
type Option func(*Writer)

// WithClock overrides the timestamp source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter creates a transcript file under dir named after the meeting and
// the current time, e.g. "2026-08-28_140305_standup.md". The directory is
// created if missing and the header is written immediately.
func NewWriter(dir, meetingName, meetingURL, botName string, opts ...Option) (*Writer, error) {
	w := &Writer{
		url: meetingURL,
		bot: botName,
		now: time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	w.start = w.now()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transcript: create dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.md", w.start.Format("2006-01-02_150405"), sanitizeName(meetingName))
	w.path = filepath.Join(dir, name)

	if err := w.flushLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the transcript file location.
func (w *Writer) Path() string {
	return w.path
}

// Record appends one spoken line attributed to speaker.
func (w *Writer) Record(speaker, text string) error {
	return w.append(fmt.Sprintf("[%s] %s: %s", w.now().Format("15:04:05"), speaker, text))
}

// RecordEvent appends a non-speech event (joins, timeouts, shutdowns),
// rendered in italics to stand apart from dialogue.
func (w *Writer) RecordEvent(text string) error {
	return w.append(fmt.Sprintf("[%s] *%s*", w.now().Format("15:04:05"), text))
}

func (w *Writer) append(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, line)
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	var sb strings.Builder
	sb.WriteString("# Meeting Transcript\n\n")
	fmt.Fprintf(&sb, "**Meeting:** %s\n", w.url)
	fmt.Fprintf(&sb, "**Date:** %s\n", w.start.Format("2006-01-02"))
	fmt.Fprintf(&sb, "**Bot:** %s\n\n", w.bot)
	for _, line := range w.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(w.path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("transcript: write %s: %w", w.path, err)
	}
	return nil
}

// sanitizeName reduces a meeting name to a filesystem-safe slug.
func sanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "meeting"
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "meeting"
	}
	return sb.String()
}
