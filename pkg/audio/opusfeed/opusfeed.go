// Package opusfeed turns a stream of Opus packets pushed by the meeting
// bridge into fixed-duration PCM capture frames.
//
// WebRTC meeting audio arrives as 48 kHz stereo Opus at 20 ms packets; the
// segmentation pipeline wants 16 kHz mono frames of a coarser duration. The
// feed decodes each packet, downmixes and resamples it, and re-chunks the
// result into a [audio.FrameQueue].
package opusfeed

import (
	"fmt"
	"sync"
	"time"

	"layeh.com/gopus"

	"github.com/quorumbot/quorum/pkg/audio"
)

// Meeting bridges deliver 48 kHz stereo Opus at 20 ms frame size.
const (
	opusSampleRate = 48000
	opusChannels   = 2
	// opusFrameSize is the number of samples per channel per 20 ms packet.
	opusFrameSize = opusSampleRate * 20 / 1000 // 960
)

// Feed decodes Opus packets and pushes re-chunked PCM frames into a queue.
// Not safe for concurrent WritePacket calls; the bridge delivers packets from
// a single read loop.
type Feed struct {
	dec   *gopus.Decoder
	queue *audio.FrameQueue

	target      audio.Format
	frameBytes  int
	frameLength time.Duration

	mu      sync.Mutex
	pending []byte
	elapsed time.Duration
}

// New creates a Feed emitting frames of duration frameLength in the target
// format into queue. The target must be mono: the decode path downmixes and
// then resamples with the mono resampler, which would interleave-corrupt a
// stereo stream.
func New(queue *audio.FrameQueue, target audio.Format, frameLength time.Duration) (*Feed, error) {
	if target.Channels != 1 {
		return nil, fmt.Errorf("opusfeed: target must be mono, got %d channels", target.Channels)
	}
	if target.SampleRate <= 0 {
		return nil, fmt.Errorf("opusfeed: invalid target sample rate %d", target.SampleRate)
	}
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("opusfeed: create decoder: %w", err)
	}
	samples := int(int64(target.SampleRate) * int64(frameLength) / int64(time.Second))
	return &Feed{
		dec:         dec,
		queue:       queue,
		target:      target,
		frameBytes:  samples * 2 * target.Channels,
		frameLength: frameLength,
	}, nil
}

// WritePacket decodes one Opus packet, converts it to the target format, and
// emits any completed frames to the queue.
func (f *Feed) WritePacket(packet []byte) error {
	pcm, err := f.dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return fmt.Errorf("opusfeed: decode: %w", err)
	}

	// Decoded packets are stereo; the target is mono by construction.
	raw := audio.StereoToMono(int16sToBytes(pcm))
	raw = audio.ResampleMono16(raw, opusSampleRate, f.target.SampleRate)

	f.mu.Lock()
	f.pending = append(f.pending, raw...)
	f.emitLocked()
	f.mu.Unlock()
	return nil
}

// Flush pushes any buffered partial frame as a short final frame, e.g. when
// the bridge disconnects.
func (f *Feed) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return
	}
	f.push(f.pending)
	f.pending = nil
}

// emitLocked drains full frames from the pending buffer. Caller holds f.mu.
func (f *Feed) emitLocked() {
	for len(f.pending) >= f.frameBytes {
		frame := make([]byte, f.frameBytes)
		copy(frame, f.pending)
		f.pending = f.pending[f.frameBytes:]
		f.push(frame)
	}
}

func (f *Feed) push(data []byte) {
	frame := audio.AudioFrame{
		Data:       data,
		SampleRate: f.target.SampleRate,
		Channels:   f.target.Channels,
		Timestamp:  f.elapsed,
	}
	f.elapsed += frame.Duration()
	f.queue.Push(frame)
}

// int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}
