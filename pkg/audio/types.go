// Package audio defines the frame-level audio types and capability interfaces
// shared by the capture, segmentation, and playback layers, plus the format
// conversion helpers used to move PCM between them.
//
// All PCM in this package is little-endian signed 16-bit.
package audio

import (
	"context"
	"time"
)

// AudioFrame represents a single fixed-duration block of PCM flowing through
// the pipeline. Frames are the atomic unit of audio transport — captured from
// the meeting, scored for speech activity, and accumulated into utterances.
type AudioFrame struct {
	// PCM audio data, little-endian int16.
	Data []byte

	// SampleRate in Hz (16000 for the capture pipeline).
	SampleRate int

	// Channels: 1 for mono capture, 2 for stereo playback sinks.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the play time of the frame's PCM data, or zero when the
// frame carries no format information.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / (2 * f.Channels)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// ZeroFrame returns a silent frame of duration d in the given format. Capture
// sources return zero frames in place of read errors so that the segmenter's
// state machine keeps its wall-clock pacing instead of aborting.
func ZeroFrame(d time.Duration, sampleRate, channels int, ts time.Duration) AudioFrame {
	samples := int(int64(sampleRate) * int64(d) / int64(time.Second))
	return AudioFrame{
		Data:       make([]byte, samples*2*channels),
		SampleRate: sampleRate,
		Channels:   channels,
		Timestamp:  ts,
	}
}

// Utterance is a finalized span of detected speech: the concatenated PCM of
// every frame accumulated between speech onset and the end condition.
type Utterance struct {
	// PCM is the concatenated frame data, little-endian int16.
	PCM []byte

	// SampleRate and Channels describe the PCM format.
	SampleRate int
	Channels   int

	// Start is the wall-clock time speech onset was detected.
	Start time.Time

	// Duration is the detected speech duration. The PCM may carry a trailing
	// silence tail beyond this as padding for transcription.
	Duration time.Duration
}

// FrameSource yields successive fixed-duration PCM frames from the meeting's
// incoming audio.
//
// NextFrame blocks until a frame of roughly duration d is available or ctx is
// done. Implementations must not propagate transient capture errors: a read
// hiccup yields a zero-filled frame of the expected length so callers keep
// their real-time cadence.
type FrameSource interface {
	NextFrame(ctx context.Context, d time.Duration) (AudioFrame, error)
}

// PlaybackSink plays PCM into the meeting's outgoing audio. Play blocks until
// the full buffer has been handed to the output device or ctx is done.
type PlaybackSink interface {
	Play(ctx context.Context, pcm []byte, sampleRate, channels int) error
}
