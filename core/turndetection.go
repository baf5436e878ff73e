package orchestration

import (
	"sync"
	"time"

	"github.com/koscakluka/ema-realtime/core/realtime"
)

const defaultHalfDuplexDelay = time.Second

// turnDetectionToggle switches server side turn detection off while the
// assistant answers and back on shortly after its playback ended.
type turnDetectionToggle struct {
	send   func(message any)
	config *realtime.TurnDetection
	delay  time.Duration

	mu      sync.Mutex
	enabled bool
	pending *time.Timer
}

func newTurnDetectionToggle(send func(message any), config *realtime.TurnDetection, delay time.Duration) *turnDetectionToggle {
	if delay <= 0 {
		delay = defaultHalfDuplexDelay
	}
	return &turnDetectionToggle{send: send, config: config, delay: delay, enabled: true}
}

func (t *turnDetectionToggle) disable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopPendingLocked()
	if !t.enabled {
		return
	}
	t.enabled = false
	t.send(realtime.NewTurnDetectionUpdate(nil))
	logger.Debug("turn detection disabled")
}

func (t *turnDetectionToggle) scheduleEnable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enabled {
		return
	}
	t.stopPendingLocked()
	t.pending = time.AfterFunc(t.delay, t.enable)
}

func (t *turnDetectionToggle) enable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = nil
	if t.enabled {
		return
	}
	t.enabled = true
	t.send(realtime.NewTurnDetectionUpdate(t.config))
	logger.Debug("turn detection enabled")
}

func (t *turnDetectionToggle) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopPendingLocked()
}

func (t *turnDetectionToggle) stopPendingLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}
