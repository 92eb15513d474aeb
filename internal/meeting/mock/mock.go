// Package mock provides a test double for [meeting.Session].
package mock

import (
	"context"
	"sync"

	"github.com/quorumbot/quorum/internal/meeting"
)

// Session is a mock [meeting.Session]. It records joined URLs and returns
// configurable values.
type Session struct {
	mu sync.Mutex

	// JoinErr, if non-nil, is returned by Join.
	JoinErr error

	// Speaker is returned by ActiveSpeaker.
	Speaker string

	// JoinedURLs records every Join invocation in order.
	JoinedURLs []string

	// Closed reports whether Close was called.
	Closed bool
}

// Join implements [meeting.Session].
func (s *Session) Join(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.JoinedURLs = append(s.JoinedURLs, url)
	return s.JoinErr
}

// ActiveSpeaker implements [meeting.Session].
func (s *Session) ActiveSpeaker() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Speaker
}

// Close implements [meeting.Session].
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Compile-time interface check.
var _ meeting.Session = (*Session)(nil)
