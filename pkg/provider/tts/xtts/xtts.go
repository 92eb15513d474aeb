// Package xtts provides a speech-synthesis backend for a self-hosted XTTS
// server speaking the ElevenLabs-compatible REST dialect:
//
//	POST /v1/text-to-speech/{voice}
//	xi-api-key: <key>
//	{"text": "...", "speed": 1.0}
//
// The server responds with a complete WAV container from which the PCM
// payload is extracted.
package xtts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quorumbot/quorum/pkg/audio"
	"github.com/quorumbot/quorum/pkg/provider/tts"
)

const defaultTimeout = 30 * time.Second

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithSpeed sets the playback speed multiplier sent with every request.
// Defaults to 1.0.
func WithSpeed(speed float64) Option {
	return func(c *Client) {
		c.speed = speed
	}
}

// WithHTTPClient replaces the HTTP client used for synthesis requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client implements [tts.Synthesizer] against an XTTS server.
type Client struct {
	serverURL  string
	voice      string
	apiKey     string
	speed      float64
	httpClient *http.Client
}

// New creates a Client for the XTTS server at serverURL using the given voice
// identifier. apiKey may be empty when the server does not enforce one.
func New(serverURL, voice, apiKey string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("xtts: serverURL must not be empty")
	}
	if voice == "" {
		return nil, errors.New("xtts: voice must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		voice:      voice,
		apiKey:     apiKey,
		speed:      1.0,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Name implements [tts.Synthesizer].
func (c *Client) Name() string { return "xtts" }

// synthesisRequest is the JSON body sent to the server.
type synthesisRequest struct {
	Text  string  `json:"text"`
	Speed float64 `json:"speed,omitempty"`
}

// Synthesize implements [tts.Synthesizer].
func (c *Client) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return tts.Clip{}, nil
	}

	payload, err := json.Marshal(synthesisRequest{Text: text, Speed: c.speed})
	if err != nil {
		return tts.Clip{}, fmt.Errorf("xtts: marshal request: %w", err)
	}

	endpoint := c.serverURL + "/v1/text-to-speech/" + url.PathEscape(c.voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return tts.Clip{}, fmt.Errorf("xtts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")
	if c.apiKey != "" {
		req.Header.Set("xi-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("xtts: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Clip{}, fmt.Errorf("xtts: unexpected status %d: %s", resp.StatusCode, snippet)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("xtts: read response body: %w", err)
	}

	info, err := audio.ParseWAV(wav)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("xtts: parse response audio: %w", err)
	}

	return tts.Clip{
		PCM:        wav[info.DataOffset : info.DataOffset+info.DataLen],
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
	}, nil
}

// Compile-time interface check.
var _ tts.Synthesizer = (*Client)(nil)
