// Package stt defines the speech-to-text contract used by the transcription
// dispatcher.
//
// Implementations live in subpackages: whisperhttp (remote transcription
// server) and whisperlocal (in-process whisper.cpp via CGO). Both are batch
// engines: they receive one finalized utterance of 1–30 seconds and return
// the raw transcription text in a single call.
package stt

import "context"

// Transcriber converts one utterance of PCM to raw text.
type Transcriber interface {
	// Transcribe submits little-endian int16 mono PCM at the given sample
	// rate and returns the recognised text, which may be empty. language is
	// a BCP-47 code such as "en"; empty lets the backend pick.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}
