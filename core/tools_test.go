package orchestration

import (
	"context"
	"testing"

	"github.com/koscakluka/ema-realtime/core/tools"
)

func invokeTool(t *testing.T, o *Orchestrator, name string, arguments map[string]any) any {
	t.Helper()
	entry, ok := o.Registry().Lookup(name)
	if !ok {
		t.Fatalf("tool %q not registered", name)
	}
	invoker, ok := entry.Tool.(tools.ContextInvoker)
	if !ok {
		t.Fatalf("tool %q is not invokable", name)
	}
	result, err := invoker.Invoke(context.Background(), arguments)
	if err != nil {
		t.Fatalf("invoke %q: %v", name, err)
	}
	return result
}

func TestOrchestrationToolsRegistered(t *testing.T) {
	o := NewOrchestrator(WithOrchestrationTools())
	defer o.Close()

	names := o.Registry().Names()
	expected := []string{"recording_control", "set_volume", "get_volume", "stop_conversation"}
	if len(names) != len(expected) {
		t.Fatalf("expected tools %v, got %v", expected, names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("expected tools %v, got %v", expected, names)
		}
	}
}

func TestVolumeTools(t *testing.T) {
	o := NewOrchestrator(WithOrchestrationTools())
	defer o.Close()

	result := invokeTool(t, o, "set_volume", map[string]any{"level": 1.7})
	if volume := result.(map[string]any)["volume"]; volume != 1.0 {
		t.Fatalf("expected set_volume to clamp to 1, got %v", volume)
	}

	invokeTool(t, o, "set_volume", map[string]any{"level": 0.25})
	result = invokeTool(t, o, "get_volume", map[string]any{})
	if volume := result.(map[string]any)["volume"]; volume != 0.25 {
		t.Fatalf("expected volume 0.25, got %v", volume)
	}
}

func TestRecordingControlTool(t *testing.T) {
	o := NewOrchestrator(WithOrchestrationTools())
	defer o.Close()

	invokeTool(t, o, "recording_control", map[string]any{"is_recording": false})
	if o.IsListening() {
		t.Fatal("expected listening to be off")
	}
	invokeTool(t, o, "recording_control", map[string]any{"is_recording": true})
	if !o.IsListening() {
		t.Fatal("expected listening to be on")
	}
}

func TestToolsRegisteredAfterCustomRegistry(t *testing.T) {
	registry := tools.NewRegistry()
	clock := tools.NewFunc("clock", "", nil, func(map[string]any) (any, error) { return "noon", nil })
	note := tools.NewFunc("note", "", nil, func(map[string]any) (any, error) { return "ok", nil })

	o := NewOrchestrator(WithTools(clock), WithLongRunningTool(note, "Writing"), WithToolRegistry(registry))
	defer o.Close()

	if _, ok := registry.Lookup("clock"); !ok {
		t.Error("tools given before the registry option should land in the custom registry")
	}
	if entry, ok := registry.Lookup("note"); !ok || !entry.IsBackground() {
		t.Errorf("expected note to be registered as long running, got %+v", entry)
	}
}
