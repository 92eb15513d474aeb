// Package vad defines the speech-activity classification contract consumed by
// the utterance segmenter.
//
// Implementations live in subpackages: silero (HTTP model service) and rms
// (energy threshold fallback). The segmenter substitutes the rms classifier
// per window whenever the primary classifier errors, so implementations may
// fail freely on transport problems.
package vad

import "context"

// Classifier scores a window of PCM for speech activity.
type Classifier interface {
	// Score returns the speech probability in [0, 1] for the given window of
	// little-endian int16 mono PCM.
	Score(ctx context.Context, pcm []byte, sampleRate int) (float64, error)
}
