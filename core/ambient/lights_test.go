package ambient

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/koscakluka/ema-realtime/core/events"
)

type recordingLights struct {
	mu      sync.Mutex
	calls   []string
	levels  []float64
	failing bool
}

func (l *recordingLights) record(call string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing {
		return errors.New("bridge offline")
	}
	l.calls = append(l.calls, call)
	return nil
}

func (l *recordingLights) Start() error { return l.record("start") }
func (l *recordingLights) Stop() error  { return l.record("stop") }
func (l *recordingLights) SetBrightness(level float64) error {
	if err := l.record("brightness"); err != nil {
		return err
	}
	l.mu.Lock()
	l.levels = append(l.levels, level)
	l.mu.Unlock()
	return nil
}

func TestLightControllerFollowsAssistantState(t *testing.T) {
	lights := &recordingLights{}
	controller := NewLightController(lights, WithBrightness(0.9, 0.2))

	controller.Handle(events.NewSessionStarted("s1"))
	if controller.State() != StateListening {
		t.Fatalf("expected listening, got %s", controller.State())
	}
	controller.Handle(events.NewAssistantPlaybackStarted())
	if controller.State() != StateResponding {
		t.Fatalf("expected responding, got %s", controller.State())
	}
	controller.Handle(events.NewAssistantPlaybackEnded(false))
	controller.Handle(events.NewSessionEnded("s1", "stopped"))
	if controller.State() != StateIdle {
		t.Fatalf("expected idle, got %s", controller.State())
	}

	expectedCalls := []string{"start", "brightness", "brightness", "brightness", "stop"}
	if !reflect.DeepEqual(lights.calls, expectedCalls) {
		t.Fatalf("expected calls %v, got %v", expectedCalls, lights.calls)
	}
	expectedLevels := []float64{0.9, 0.2, 0.9}
	if !reflect.DeepEqual(lights.levels, expectedLevels) {
		t.Fatalf("expected levels %v, got %v", expectedLevels, lights.levels)
	}
}

func TestLightControllerSkipsRedundantTransitions(t *testing.T) {
	lights := &recordingLights{}
	controller := NewLightController(lights)

	controller.Handle(events.NewSessionStarted("s1"))
	controller.Handle(events.NewUserSpeechStarted())
	controller.Handle(events.NewUserSpeechStarted())
	controller.Handle(events.NewUserTranscriptFinal("item", "hi"))

	if len(lights.calls) != 2 {
		t.Fatalf("expected start and one brightness call, got %v", lights.calls)
	}
}

func TestLightControllerIgnoresIdleWhileOff(t *testing.T) {
	lights := &recordingLights{}
	controller := NewLightController(lights)

	controller.Handle(events.NewSessionEnded("s1", "cancelled"))

	if len(lights.calls) != 0 {
		t.Fatalf("expected no calls, got %v", lights.calls)
	}
}

func TestLightControllerKeepsStateWhenLightsFail(t *testing.T) {
	lights := &recordingLights{failing: true}
	controller := NewLightController(lights)

	controller.Handle(events.NewAssistantPlaybackStarted())

	if controller.State() != StateIdle {
		t.Fatalf("expected state to stay idle, got %s", controller.State())
	}

	lights.failing = false
	controller.Handle(events.NewAssistantPlaybackStarted())
	if controller.State() != StateResponding {
		t.Fatalf("expected a retry to reach responding, got %s", controller.State())
	}
}

func TestLightControllerWithoutLights(t *testing.T) {
	controller := NewLightController(nil)

	controller.Handle(events.NewAssistantPlaybackStarted())

	if controller.State() != StateResponding {
		t.Fatalf("expected responding, got %s", controller.State())
	}
}
