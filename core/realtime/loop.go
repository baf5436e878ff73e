package realtime

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrLoopStopped is returned when handing work to a loop that is not
	// running anymore.
	ErrLoopStopped = errors.New("event loop not running")
	// ErrDeliveryTimeout is returned when a delivery was not executed within
	// its bounded wait.
	ErrDeliveryTimeout = errors.New("event loop did not run delivery in time")
)

const defaultLoopCapacity = 64

// Loop is the single goroutine that owns the channel. Inbound frames,
// microphone sends and results from background tools are all funneled
// through it, so only one goroutine ever writes to the socket and frames
// are handled in arrival order.
type Loop struct {
	tasks chan func()

	stopOnce sync.Once
	stopped  chan struct{}
}

func NewLoop(capacity int) *Loop {
	if capacity <= 0 {
		capacity = defaultLoopCapacity
	}
	return &Loop{tasks: make(chan func(), capacity), stopped: make(chan struct{})}
}

// Run executes tasks in order until ctx is done. A loop cannot be restarted.
func (l *Loop) Run(ctx context.Context) {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopped:
			return
		case task := <-l.tasks:
			task()
		}
	}
}

// Stopped is closed once the loop exited.
func (l *Loop) Stopped() <-chan struct{} { return l.stopped }

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.stopped) })
}

// Post queues task, blocking while the queue is full. It does not wait for
// the task to run.
func (l *Loop) Post(ctx context.Context, task func()) error {
	select {
	case <-l.stopped:
		return ErrLoopStopped
	default:
	}

	select {
	case l.tasks <- task:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver hands task to the loop from a foreign goroutine and waits up to
// timeout for it to finish running.
func (l *Loop) Deliver(timeout time.Duration, task func()) error {
	select {
	case <-l.stopped:
		return ErrLoopStopped
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		task()
	}

	select {
	case l.tasks <- wrapped:
	case <-l.stopped:
		return ErrLoopStopped
	case <-timer.C:
		return ErrDeliveryTimeout
	}

	select {
	case <-finished:
		return nil
	case <-l.stopped:
		// the loop may have run the task right before exiting
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-timer.C:
		return ErrDeliveryTimeout
	}
}
