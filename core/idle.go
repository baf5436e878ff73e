package orchestration

import (
	"sync"
	"time"
)

// idleTimer fires onIdle when the user stays silent for too long, first
// after the session started and then after each assistant answer.
type idleTimer struct {
	initial       time.Duration
	afterResponse time.Duration
	onIdle        func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newIdleTimer(initial, afterResponse time.Duration, onIdle func()) *idleTimer {
	return &idleTimer{initial: initial, afterResponse: afterResponse, onIdle: onIdle}
}

func (t *idleTimer) start() { t.arm(t.initial) }

// pause holds the timer while the user speaks.
func (t *idleTimer) pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimerLocked()
}

func (t *idleTimer) reset() { t.arm(t.afterResponse) }

func (t *idleTimer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.stopTimerLocked()
}

func (t *idleTimer) arm(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimerLocked()
	if t.stopped || timeout <= 0 {
		return
	}
	t.timer = time.AfterFunc(timeout, func() {
		logger.Info("no speech within idle timeout, ending session", "timeout", timeout)
		t.onIdle()
	})
}

func (t *idleTimer) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
