// Package silero provides a speech-activity classifier backed by a Silero VAD
// model served over HTTP (e.g. a small ONNX sidecar).
//
// The wire contract is deliberately tiny: POST the raw little-endian int16
// mono PCM window to /v1/score?rate=<hz> and receive {"probability": <0..1>}.
package silero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/quorumbot/quorum/pkg/provider/vad"
)

const defaultTimeout = 2 * time.Second

// Option is a functional option for configuring the Classifier.
type Option func(*Classifier)

// WithHTTPClient replaces the HTTP client used for scoring requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Classifier) {
		s.httpClient = c
	}
}

// Classifier implements [vad.Classifier] against a Silero scoring service.
type Classifier struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Classifier talking to the scoring service at baseURL
// (e.g. "http://localhost:9090").
func New(baseURL string, opts ...Option) (*Classifier, error) {
	if baseURL == "" {
		return nil, errors.New("silero: baseURL must not be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("silero: invalid baseURL: %w", err)
	}
	c := &Classifier{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// scoreResponse is the JSON body returned by the scoring service.
type scoreResponse struct {
	Probability float64 `json:"probability"`
}

// Score implements [vad.Classifier]. It posts the raw PCM window and returns
// the model's speech probability.
func (c *Classifier) Score(ctx context.Context, pcm []byte, sampleRate int) (float64, error) {
	u := c.baseURL + "/v1/score?rate=" + strconv.Itoa(sampleRate)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(pcm))
	if err != nil {
		return 0, fmt.Errorf("silero: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("silero: score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("silero: unexpected status %d: %s", resp.StatusCode, body)
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return 0, fmt.Errorf("silero: decode response: %w", err)
	}
	if sr.Probability < 0 || sr.Probability > 1 {
		return 0, fmt.Errorf("silero: probability %v out of range", sr.Probability)
	}
	return sr.Probability, nil
}

// Compile-time interface check.
var _ vad.Classifier = (*Classifier)(nil)
