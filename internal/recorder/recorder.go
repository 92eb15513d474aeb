// Package recorder persists the raw meeting audio as a WAV file.
//
// Frames are appended as they arrive; the RIFF header is written with
// placeholder sizes and patched on Close, so an unclosed file from a crashed
// run carries zero lengths and most tools will still open the data chunk.
package recorder

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quorumbot/quorum/pkg/audio"
)

const headerSize = 44

// Recorder writes PCM frames to a WAV file. Safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	f          *os.File
	path       string
	sampleRate int
	channels   int
	dataLen    uint32
	closed     bool
}

// New creates a recording under dir named after the start time, e.g.
// "2026-08-28_140305.wav", and writes the provisional header.
func New(dir string, sampleRate, channels int) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create dir: %w", err)
	}
	path := filepath.Join(dir, time.Now().Format("2006-01-02_150405")+".wav")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: create %s: %w", path, err)
	}

	r := &Recorder{
		f:          f,
		path:       path,
		sampleRate: sampleRate,
		channels:   channels,
	}
	header := audio.EncodeWAV(nil, sampleRate, channels)
	if _, err := f.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("recorder: write header: %w", err)
	}
	return r, nil
}

// Path returns the recording file location.
func (r *Recorder) Path() string {
	return r.path
}

// Write appends one frame. Frames must match the sample rate and channel
// count the Recorder was created with; mismatched frames are rejected.
func (r *Recorder) Write(frame audio.AudioFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder: write after close")
	}
	if frame.SampleRate != r.sampleRate || frame.Channels != r.channels {
		return fmt.Errorf("recorder: frame format %dHz/%dch does not match recording %dHz/%dch",
			frame.SampleRate, frame.Channels, r.sampleRate, r.channels)
	}
	n, err := r.f.Write(frame.Data)
	r.dataLen += uint32(n)
	if err != nil {
		return fmt.Errorf("recorder: append frame: %w", err)
	}
	return nil
}

// Duration returns the length of audio recorded so far.
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	bytesPerSec := r.sampleRate * r.channels * 2
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(r.dataLen) * time.Second / time.Duration(bytesPerSec)
}

// Close patches the RIFF and data chunk sizes and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var sizes [4]byte
	binary.LittleEndian.PutUint32(sizes[:], 36+r.dataLen)
	if _, err := r.f.WriteAt(sizes[:], 4); err != nil {
		r.f.Close()
		return fmt.Errorf("recorder: patch riff size: %w", err)
	}
	binary.LittleEndian.PutUint32(sizes[:], r.dataLen)
	if _, err := r.f.WriteAt(sizes[:], 40); err != nil {
		r.f.Close()
		return fmt.Errorf("recorder: patch data size: %w", err)
	}
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("recorder: close: %w", err)
	}
	return nil
}
