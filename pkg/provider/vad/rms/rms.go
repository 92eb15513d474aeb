// Package rms provides an energy-threshold speech-activity classifier used as
// the degraded-mode fallback when the model-backed classifier is unreachable.
package rms

import (
	"context"

	"github.com/quorumbot/quorum/pkg/audio"
	"github.com/quorumbot/quorum/pkg/provider/vad"
)

// DefaultThreshold is the int16-scale RMS amplitude above which a window is
// treated as speech. Equivalent to ~0.005 in float sample terms, which is
// enough to separate voices from room noise on a typical meeting feed.
const DefaultThreshold = 164.0

// Classifier implements [vad.Classifier] with a hard RMS energy threshold.
// Score never fails, making it a safe last-resort signal.
type Classifier struct {
	// Threshold is the int16-scale RMS amplitude treated as speech.
	// Zero means DefaultThreshold.
	Threshold float64
}

// Score implements [vad.Classifier]. It returns 1 when the window's RMS
// amplitude exceeds the threshold and 0 otherwise.
func (c *Classifier) Score(_ context.Context, pcm []byte, _ int) (float64, error) {
	threshold := c.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if audio.RMS(pcm) > threshold {
		return 1, nil
	}
	return 0, nil
}

// Compile-time interface check.
var _ vad.Classifier = (*Classifier)(nil)
