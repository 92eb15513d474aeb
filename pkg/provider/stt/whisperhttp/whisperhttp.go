// Package whisperhttp provides the primary transcription backend: a remote
// Whisper transcription server exposing POST /transcribe.
//
// The request is a multipart upload of the utterance as a WAV file plus
// optional language and model fields; the response is JSON:
//
//	{"text": "what was said", "language": "en", "duration": 3.1}
//
// A GPU box on the local network typically serves this endpoint, so the
// default request timeout is generous but bounded; callers are expected to
// wrap this backend in a fallback group with the local engine.
package whisperhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/quorumbot/quorum/pkg/audio"
	"github.com/quorumbot/quorum/pkg/provider/stt"
)

const defaultTimeout = 60 * time.Second

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithModel sets the model identifier forwarded to the server (e.g.
// "large-v3"). When empty the server uses whichever model it was started
// with — this is the default.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient replaces the HTTP client used for transcription requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client implements [stt.Transcriber] against a remote transcription server.
type Client struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New creates a Client for the transcription server at serverURL
// (e.g. "http://gpu-box:8008"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("whisperhttp: serverURL must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Name implements [stt.Transcriber].
func (c *Client) Name() string { return "whisperhttp" }

// transcribeResponse is the JSON body returned by POST /transcribe.
type transcribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Transcribe implements [stt.Transcriber]. It wraps the PCM in a WAV
// container, uploads it, and returns the server's text.
func (c *Client) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisperhttp: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(pcm, sampleRate, 1)); err != nil {
		return "", fmt.Errorf("whisperhttp: write WAV payload: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return "", fmt.Errorf("whisperhttp: write language field: %w", err)
		}
	}
	if c.model != "" {
		if err := mw.WriteField("model", c.model); err != nil {
			return "", fmt.Errorf("whisperhttp: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisperhttp: finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/transcribe", &body)
	if err != nil {
		return "", fmt.Errorf("whisperhttp: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisperhttp: transcribe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisperhttp: unexpected status %d: %s", resp.StatusCode, snippet)
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("whisperhttp: decode response: %w", err)
	}
	return strings.TrimSpace(tr.Text), nil
}

// Compile-time interface check.
var _ stt.Transcriber = (*Client)(nil)
