// Package meeting defines the narrow session-control contract to the meeting
// surface. Everything platform-specific (browser automation, WebRTC, DOM
// scraping) lives behind it; the orchestrator only ever joins, asks who is
// talking, and leaves.
package meeting

import "context"

// Session is a handle to one meeting.
type Session interface {
	// Join enters the meeting at url and returns once the bot is visible
	// to other participants.
	Join(ctx context.Context, url string) error

	// ActiveSpeaker returns the display name of the current dominant
	// speaker, or "" when unknown. Best effort; attribution may lag the
	// audio by a moment.
	ActiveSpeaker() string

	// Close leaves the meeting and releases the session.
	Close() error
}

// Nop is a Session for audio-only operation, where capture and playback are
// wired directly to the sound server and no meeting surface is controlled.
type Nop struct{}

// Join implements [Session].
func (Nop) Join(context.Context, string) error { return nil }

// ActiveSpeaker implements [Session].
func (Nop) ActiveSpeaker() string { return "" }

// Close implements [Session].
func (Nop) Close() error { return nil }

// Compile-time interface check.
var _ Session = Nop{}
