package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-realtime/core/tools"
)

// Scheduler is the alarm scheduling capability, see ambient.TimerScheduler.
type Scheduler interface {
	Schedule(id string, after time.Duration)
	Cancel(id string) bool
}

type timerRequest struct {
	Seconds int    `json:"seconds" jsonschema:"description=Seconds until the timer goes off,minimum=1"`
	Label   string `json:"label,omitempty" jsonschema:"description=Optional name used to cancel the timer later"`
}

type cancelTimerRequest struct {
	Label string `json:"label" jsonschema:"description=Name the timer was set with"`
}

// NewTimerTools returns set_timer and cancel_timer backed by scheduler.
func NewTimerTools(scheduler Scheduler) []tools.Tool {
	set := tools.NewTool("set_timer", "Set a timer that plays an alarm sound when it goes off.",
		func(_ context.Context, request timerRequest) (any, error) {
			if request.Seconds <= 0 {
				return nil, fmt.Errorf("seconds must be positive")
			}
			id := strings.TrimSpace(request.Label)
			if id == "" {
				id = uuid.NewString()
			}
			scheduler.Schedule(id, time.Duration(request.Seconds)*time.Second)
			logger.Info("timer set", "timer_id", id, "seconds", request.Seconds)
			return map[string]any{"timer_id": id, "seconds": request.Seconds}, nil
		})

	cancel := tools.NewTool("cancel_timer", "Cancel a timer by its name.",
		func(_ context.Context, request cancelTimerRequest) (any, error) {
			return map[string]any{"cancelled": scheduler.Cancel(strings.TrimSpace(request.Label))}, nil
		})

	return []tools.Tool{set, cancel}
}
