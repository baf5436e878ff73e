package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/realtime"
)

var (
	errStopRequested = errors.New("conversation stopped")
	errIdle          = errors.New("session idle")
	errDisconnected  = errors.New("realtime channel disconnected")
)

const (
	EndReasonStopped      = "stopped"
	EndReasonIdle         = "idle"
	EndReasonCancelled    = "cancelled"
	EndReasonDisconnected = "disconnected"
)

// session is the state of one Run. Fields are set before the session is
// published and read-only afterwards.
type session struct {
	id      string
	channel *realtime.Channel
	loop    *realtime.Loop
	cancel  context.CancelCauseFunc
	emit    events.Handler

	deliveryTimeout time.Duration

	control       *controlQueue
	turnDetection *turnDetectionToggle
	idle          *idleTimer

	stopAfterPlayback atomic.Bool
}

// observe reacts to the session's own events.
func (s *session) observe(event events.Event) {
	switch event.(type) {
	case events.UserSpeechStarted:
		if s.idle != nil {
			s.idle.pause()
		}
	case events.UserSpeechEnded:
		if s.turnDetection != nil {
			s.turnDetection.disable()
		}
	case events.AssistantPlaybackEnded:
		if s.turnDetection != nil {
			s.turnDetection.scheduleEnable()
		}
		if s.idle != nil {
			s.idle.reset()
		}
		if s.stopAfterPlayback.Load() {
			s.cancel(errStopRequested)
		}
	}
}

// send queues message for the socket without waiting for it. It is safe to
// call from any goroutine, including the loop itself. Messages are written
// in the order send was called.
func (s *session) send(message any) {
	s.control.push(message)
}

func (s *session) deliverControl(message any) error {
	return s.loop.Deliver(s.deliveryTimeout, func() { s.channel.SendJSON(message) })
}

// controlQueue hands control messages to the loop one at a time from a
// single goroutine.
type controlQueue struct {
	mu      sync.Mutex
	pending []any
	signal  chan struct{}
}

func newControlQueue() *controlQueue {
	return &controlQueue{signal: make(chan struct{}, 1)}
}

func (q *controlQueue) push(message any) {
	q.mu.Lock()
	q.pending = append(q.pending, message)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *controlQueue) take() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.pending
	q.pending = nil
	return pending
}

// run delivers queued messages until ctx is done. A failed delivery drops
// that message only.
func (q *controlQueue) run(ctx context.Context, deliver func(message any) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.signal:
		}

		for _, message := range q.take() {
			if err := deliver(message); err != nil {
				logger.Warn("dropping control message", "error", err)
			}
		}
	}
}

func (s *session) requestStop(grace time.Duration) {
	if !s.stopAfterPlayback.CompareAndSwap(false, true) {
		return
	}
	time.AfterFunc(grace, func() { s.cancel(errStopRequested) })
}

func endReason(ctx, runCtx context.Context) string {
	cause := context.Cause(runCtx)
	switch {
	case errors.Is(cause, errStopRequested):
		return EndReasonStopped
	case errors.Is(cause, errIdle):
		return EndReasonIdle
	case ctx.Err() != nil:
		return EndReasonCancelled
	default:
		return EndReasonDisconnected
	}
}
