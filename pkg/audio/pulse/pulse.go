// Package pulse implements audio capture and playback against a PulseAudio
// (or PipeWire) daemon by driving the parec and paplay command-line clients as
// long-lived subprocesses over raw PCM pipes.
//
// This is the surface used when the meeting's audio is routed through the
// host's sound server, e.g. a virtual sink shared with a browser tab.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/quorumbot/quorum/pkg/audio"
)

// CaptureSource reads fixed-duration PCM frames from a parec subprocess. It
// implements [audio.FrameSource].
//
// Read errors are absorbed: the affected frame is returned zero-filled and the
// subprocess is restarted in the background, so the segmenter never sees a
// capture failure.
type CaptureSource struct {
	device     string
	sampleRate int
	channels   int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser

	elapsed time.Duration
}

// NewCaptureSource creates a capture source reading from the given PulseAudio
// source device ("" uses the daemon default). The parec process is started
// lazily on the first NextFrame call.
func NewCaptureSource(device string, sampleRate, channels int) *CaptureSource {
	return &CaptureSource{
		device:     device,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// NextFrame implements [audio.FrameSource]. It blocks until d worth of PCM has
// been read from the capture pipe. On any pipe error it tears down the
// subprocess and returns a zero-filled frame of the expected length.
func (s *CaptureSource) NextFrame(ctx context.Context, d time.Duration) (audio.AudioFrame, error) {
	want := s.frameBytes(d)
	ts := s.elapsed
	s.elapsed += d

	buf := make([]byte, want)
	if err := s.readFull(ctx, buf); err != nil {
		if ctx.Err() != nil {
			return audio.AudioFrame{}, ctx.Err()
		}
		slog.Warn("pulse capture read failed, substituting silence", "error", err)
		s.teardown()
		return audio.ZeroFrame(d, s.sampleRate, s.channels, ts), nil
	}

	return audio.AudioFrame{
		Data:       buf,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		Timestamp:  ts,
	}, nil
}

// Close stops the parec subprocess if one is running.
func (s *CaptureSource) Close() error {
	s.teardown()
	return nil
}

func (s *CaptureSource) frameBytes(d time.Duration) int {
	samples := int(int64(s.sampleRate) * int64(d) / int64(time.Second))
	return samples * 2 * s.channels
}

// readFull fills buf from the capture pipe, starting parec if needed. The
// read itself runs in a goroutine so that ctx cancellation can interrupt it.
func (s *CaptureSource) readFull(ctx context.Context, buf []byte) error {
	r, err := s.pipe()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(r, buf)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.teardown()
		<-done
		return ctx.Err()
	}
}

// pipe returns the stdout of the running parec process, starting it first
// when necessary. The process is not tied to any frame-read context so that
// it survives a cancelled read and keeps the stream position.
func (s *CaptureSource) pipe() (io.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdout != nil {
		return s.stdout, nil
	}

	args := []string{
		"--format=s16le",
		"--rate=" + strconv.Itoa(s.sampleRate),
		"--channels=" + strconv.Itoa(s.channels),
		"--raw",
	}
	if s.device != "" {
		args = append(args, "--device="+s.device)
	}

	cmd := exec.Command("parec", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pulse: capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("pulse: start parec: %w", err)
	}

	slog.Debug("pulse capture started", "device", s.device, "rate", s.sampleRate, "channels", s.channels)
	s.cmd = cmd
	s.stdout = stdout
	return stdout, nil
}

func (s *CaptureSource) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return
	}
	_ = s.stdout.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
}

// PlaybackSink plays PCM through a paplay subprocess per call. It implements
// [audio.PlaybackSink].
type PlaybackSink struct {
	// Device is the PulseAudio sink to play into ("" uses the daemon default).
	Device string
}

// Play implements [audio.PlaybackSink]. It spawns one paplay process, writes
// the full buffer to its stdin, and waits for the process to exit so that the
// caller observes playback completion.
func (p *PlaybackSink) Play(ctx context.Context, pcm []byte, sampleRate, channels int) error {
	if len(pcm) == 0 {
		return nil
	}

	args := []string{
		"--format=s16le",
		"--rate=" + strconv.Itoa(sampleRate),
		"--channels=" + strconv.Itoa(channels),
		"--raw",
	}
	if p.Device != "" {
		args = append(args, "--device="+p.Device)
	}

	cmd := exec.CommandContext(ctx, "paplay", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("pulse: playback stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("pulse: start paplay: %w", err)
	}

	_, writeErr := stdin.Write(pcm)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	if err := errors.Join(writeErr, closeErr, waitErr); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("pulse: playback: %w", err)
	}
	return nil
}
