// Package mock provides a scripted test double for [vad.Classifier].
package mock

import (
	"context"
	"sync"

	"github.com/quorumbot/quorum/pkg/provider/vad"
)

// Classifier is a mock [vad.Classifier]. Scores are consumed front to back;
// once exhausted, Fallback (default 0) is returned for every further call.
type Classifier struct {
	mu sync.Mutex

	// Scores is the script of probabilities to return in order.
	Scores []float64

	// Fallback is returned after the script is exhausted.
	Fallback float64

	// Err, if non-nil, is returned by every Score call.
	Err error

	// CallCount records how many times Score was called.
	CallCount int
}

// Score implements [vad.Classifier].
func (c *Classifier) Score(_ context.Context, _ []byte, _ int) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount++
	if c.Err != nil {
		return 0, c.Err
	}
	if len(c.Scores) > 0 {
		s := c.Scores[0]
		c.Scores = c.Scores[1:]
		return s, nil
	}
	return c.Fallback, nil
}

// Compile-time interface check.
var _ vad.Classifier = (*Classifier)(nil)
