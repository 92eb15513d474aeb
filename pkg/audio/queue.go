package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FrameQueue is a bounded buffer decoupling the real-time capture goroutine
// from the coordinator's blocking consumption. The producer never blocks: when
// the queue is full the oldest frame is dropped so that capture keeps pace
// with wall-clock audio even while the consumer is transcribing or speaking.
//
// FrameQueue implements [FrameSource] on the consumer side.
type FrameQueue struct {
	mu     sync.Mutex
	frames []AudioFrame
	max    int
	wake   chan struct{}

	// OnDrop, if non-nil, is invoked (outside the lock) once for every frame
	// discarded due to overflow. Used to feed the dropped-frames counter.
	OnDrop func(AudioFrame)

	warnedDrop sync.Once
}

// NewFrameQueue creates a queue holding at most depth frames. depth must be
// at least 1.
func NewFrameQueue(depth int) *FrameQueue {
	if depth < 1 {
		depth = 1
	}
	return &FrameQueue{
		max:  depth,
		wake: make(chan struct{}, 1),
	}
}

// Push appends a frame, evicting the oldest frame first when the queue is
// full. It never blocks.
func (q *FrameQueue) Push(f AudioFrame) {
	var dropped *AudioFrame

	q.mu.Lock()
	if len(q.frames) >= q.max {
		d := q.frames[0]
		dropped = &d
		q.frames = q.frames[1:]
	}
	q.frames = append(q.frames, f)
	q.mu.Unlock()

	if dropped != nil {
		q.warnedDrop.Do(func() {
			slog.Warn("frame queue full, dropping oldest frames", "depth", q.max)
		})
		if q.OnDrop != nil {
			q.OnDrop(*dropped)
		}
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of buffered frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// NextFrame implements [FrameSource]. It blocks until a frame is available or
// ctx is done. The d parameter is advisory; frames are emitted in the size the
// producer captured them.
func (q *FrameQueue) NextFrame(ctx context.Context, _ time.Duration) (AudioFrame, error) {
	for {
		q.mu.Lock()
		if len(q.frames) > 0 {
			f := q.frames[0]
			q.frames = q.frames[1:]
			q.mu.Unlock()
			return f, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return AudioFrame{}, ctx.Err()
		}
	}
}

// Pump copies frames of duration d from src into q until ctx is done. Run it
// in its own goroutine: it keeps draining the capture source at real-time
// pace while the consumer blocks on transcription, the agent mailbox, or
// playback, so backlog is shed through the queue's oldest-drop policy instead
// of accumulating in the source.
func Pump(ctx context.Context, src FrameSource, d time.Duration, q *FrameQueue) error {
	for {
		f, err := src.NextFrame(ctx, d)
		if err != nil {
			return err
		}
		q.Push(f)
	}
}
