// Package tts defines the speech-synthesis contract used by the speech
// dispatcher.
//
// Implementations live in subpackages: xtts (self-hosted XTTS server) and
// openai (OpenAI speech API). Backends return audio in their native format;
// the dispatcher owns conversion to the playback sink's format.
package tts

import "context"

// Clip is one synthesized audio result in the backend's native PCM format.
type Clip struct {
	// PCM is little-endian int16 audio data.
	PCM []byte

	SampleRate int
	Channels   int
}

// Synthesizer converts one text chunk into audio.
type Synthesizer interface {
	// Synthesize renders text to a PCM clip. Implementations block until the
	// full clip is available or ctx is done.
	Synthesize(ctx context.Context, text string) (Clip, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}
