// Package bridge implements [meeting.Session] over a websocket connection to
// a companion browser-automation daemon.
//
// The daemon owns the actual browser: it joins the meeting page, taps the
// incoming WebRTC audio, and reports the dominant speaker from the DOM. The
// wire protocol is deliberately small:
//
//	→ {"op":"join","url":"…","name":"…"}
//	→ {"op":"leave"}
//	← {"ev":"joined"}
//	← {"ev":"speaker","name":"…"}
//	← {"ev":"error","message":"…"}
//
// plus binary messages carrying raw Opus packets of meeting audio, which are
// forwarded into an [opusfeed.Feed] when one is attached.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/quorumbot/quorum/internal/meeting"
	"github.com/quorumbot/quorum/pkg/audio/opusfeed"
)

const joinTimeout = 60 * time.Second

// command is a message sent to the daemon.
type command struct {
	Op   string `json:"op"`
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
}

// event is a message received from the daemon.
type event struct {
	Ev      string `json:"ev"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// Session is a live connection to the bridge daemon. It implements
// [meeting.Session].
type Session struct {
	conn    *websocket.Conn
	feed    *opusfeed.Feed
	botName string

	joined chan error

	mu      sync.RWMutex
	speaker string

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithAudioFeed forwards binary audio messages from the daemon into feed.
// Without it the bridge only provides session control and speaker names.
func WithAudioFeed(feed *opusfeed.Feed) Option {
	return func(s *Session) {
		s.feed = feed
	}
}

// WithBotName sets the display name the daemon uses when joining. Defaults
// to "Quorum".
func WithBotName(name string) Option {
	return func(s *Session) {
		s.botName = name
	}
}

// Dial connects to the bridge daemon at wsURL. The returned Session is not
// yet in a meeting; call [Session.Join].
func Dial(ctx context.Context, wsURL string, opts ...Option) (*Session, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", wsURL, err)
	}
	// Opus packets are small but frequent; the default read limit is fine,
	// the write side never sends large frames.
	s := &Session{
		conn:    conn,
		botName: "Quorum",
		joined:  make(chan error, 1),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.wg.Add(1)
	go s.readLoop()
	return s, nil
}

// Join implements [meeting.Session]. It asks the daemon to join url and
// blocks until the daemon confirms or the timeout elapses.
func (s *Session) Join(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, s.conn, command{Op: "join", URL: url, Name: s.botName}); err != nil {
		return fmt.Errorf("bridge: send join: %w", err)
	}

	select {
	case err := <-s.joined:
		if err != nil {
			return fmt.Errorf("bridge: join: %w", err)
		}
		slog.Info("joined meeting via bridge", "url", url, "bot", s.botName)
		return nil
	case <-s.done:
		return errors.New("bridge: connection closed while joining")
	case <-ctx.Done():
		return fmt.Errorf("bridge: join: %w", ctx.Err())
	}
}

// ActiveSpeaker implements [meeting.Session].
func (s *Session) ActiveSpeaker() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speaker
}

// Close implements [meeting.Session]. It asks the daemon to leave the
// meeting and tears the connection down.
func (s *Session) Close() error {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := wsjson.Write(ctx, s.conn, command{Op: "leave"}); err != nil {
			slog.Warn("failed to send leave to bridge", "error", err)
		}
		close(s.done)
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
		if s.feed != nil {
			s.feed.Flush()
		}
	})
	return nil
}

// readLoop dispatches daemon messages: text frames are control events,
// binary frames are Opus audio.
func (s *Session) readLoop() {
	defer s.wg.Done()
	for {
		typ, data, err := s.conn.Read(context.Background())
		if err != nil {
			select {
			case <-s.done:
			default:
				slog.Warn("bridge connection lost", "error", err)
			}
			return
		}

		if typ == websocket.MessageBinary {
			if s.feed == nil {
				continue
			}
			if err := s.feed.WritePacket(data); err != nil {
				slog.Debug("dropping undecodable audio packet", "error", err)
			}
			continue
		}

		s.handleEvent(data)
	}
}

func (s *Session) handleEvent(data []byte) {
	ev, ok := parseEvent(data)
	if !ok {
		return
	}
	switch ev.Ev {
	case "joined":
		select {
		case s.joined <- nil:
		default:
		}
	case "speaker":
		s.mu.Lock()
		s.speaker = ev.Name
		s.mu.Unlock()
	case "error":
		err := errors.New(ev.Message)
		select {
		case s.joined <- err:
		default:
			slog.Warn("bridge reported error", "message", ev.Message)
		}
	}
}

// parseEvent parses a raw text message into an event. Unknown or malformed
// messages are ignored.
func parseEvent(data []byte) (event, bool) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return event{}, false
	}
	if ev.Ev == "" {
		return event{}, false
	}
	return ev, true
}

// Compile-time interface check.
var _ meeting.Session = (*Session)(nil)
