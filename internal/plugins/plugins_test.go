package plugins

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/ema-realtime/core/tools"
)

func invokeTool(t *testing.T, tool tools.Tool, arguments map[string]any) (any, error) {
	t.Helper()
	invoker, ok := tool.(tools.ContextInvoker)
	if !ok {
		t.Fatalf("expected %s to be invocable with a context", tool.Name())
	}
	return invoker.Invoke(context.Background(), arguments)
}

func TestWeatherToolQueriesForecast(t *testing.T) {
	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{
			"latitude":  r.URL.Query().Get("latitude"),
			"longitude": r.URL.Query().Get("longitude"),
			"current":   r.URL.Query().Get("current"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"time":"2024-05-01T10:00","temperature_2m":18.5,"wind_speed_10m":7.2,"weather_code":3},"current_units":{"temperature_2m":"°C"}}`))
	}))
	defer server.Close()

	result, err := invokeTool(t, NewWeatherTool(server.URL, nil), map[string]any{"latitude": 45.81, "longitude": 15.98})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expectedQuery := map[string]string{"latitude": "45.81", "longitude": "15.98", "current": "temperature_2m,wind_speed_10m,weather_code"}
	if !reflect.DeepEqual(query, expectedQuery) {
		t.Fatalf("expected query %v, got %v", expectedQuery, query)
	}
	report, ok := result.(weatherReport)
	if !ok {
		t.Fatalf("expected weatherReport, got %T", result)
	}
	if report.Temperature != 18.5 || report.WindSpeed != 7.2 || report.WeatherCode != 3 || report.Units != "°C" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestWeatherToolReportsServiceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := invokeTool(t, NewWeatherTool(server.URL, server.Client()), map[string]any{"latitude": 0, "longitude": 0})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected a 429 error, got %v", err)
	}
}

func TestClockToolUsesTimezone(t *testing.T) {
	fixed := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	tool := NewClockTool(func() time.Time { return fixed })

	result, err := invokeTool(t, tool, map[string]any{"timezone": "UTC"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	reading := result.(clockReading)
	if reading.Time != "2024-05-01T12:00:00Z" || reading.Weekday != "Wednesday" || reading.Timezone != "UTC" {
		t.Fatalf("unexpected reading %+v", reading)
	}

	if _, err := invokeTool(t, tool, map[string]any{"timezone": "Mars/Olympus"}); err == nil {
		t.Fatalf("expected unknown timezone to fail")
	}
}

func TestNoteToolAppendsNotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	fixed := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	tool := NewNoteTool(path, func() time.Time { return fixed })

	for _, text := range []string{"buy milk", "call\nmom"} {
		if _, err := invokeTool(t, tool, map[string]any{"text": text}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if _, err := invokeTool(t, tool, map[string]any{"text": "  "}); err == nil {
		t.Fatalf("expected empty note to fail")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read notes: %v", err)
	}
	expected := "2024-05-01T12:00:00Z buy milk\n2024-05-01T12:00:00Z call mom\n"
	if string(data) != expected {
		t.Fatalf("expected %q, got %q", expected, string(data))
	}
}

func TestRegisterMarksNoteToolAsBackground(t *testing.T) {
	registry := tools.NewRegistry()

	if err := Register(registry, Config{WeatherURL: "http://localhost", NotesPath: filepath.Join(t.TempDir(), "n.txt")}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := []string{"get_weather", "get_time", "write_note"}
	if got := registry.Names(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected tools %v, got %v", expected, got)
	}
	entry, _ := registry.Lookup("write_note")
	if !entry.IsBackground() {
		t.Fatalf("expected note tool to be long running")
	}
	entry, _ = registry.Lookup("get_time")
	if entry.IsBackground() {
		t.Fatalf("expected clock tool to run inline")
	}

	if err := Register(registry, Config{}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

type fakeScheduler struct {
	scheduled map[string]time.Duration
}

func (s *fakeScheduler) Schedule(id string, after time.Duration) {
	s.scheduled[id] = after
}

func (s *fakeScheduler) Cancel(id string) bool {
	_, ok := s.scheduled[id]
	delete(s.scheduled, id)
	return ok
}

func TestTimerToolsScheduleAndCancel(t *testing.T) {
	scheduler := &fakeScheduler{scheduled: map[string]time.Duration{}}
	timerTools := NewTimerTools(scheduler)
	set, cancel := timerTools[0], timerTools[1]

	if _, err := invokeTool(t, set, map[string]any{"seconds": 90, "label": "tea"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if scheduler.scheduled["tea"] != 90*time.Second {
		t.Fatalf("expected tea timer for 90s, got %v", scheduler.scheduled)
	}

	result, err := invokeTool(t, set, map[string]any{"seconds": 5})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id, _ := result.(map[string]any)["timer_id"].(string); id == "" {
		t.Fatalf("expected a generated timer id, got %v", result)
	}

	if _, err := invokeTool(t, set, map[string]any{"seconds": 0}); err == nil {
		t.Fatalf("expected zero seconds to fail")
	}

	result, err = invokeTool(t, cancel, map[string]any{"label": "tea"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cancelled := result.(map[string]any)["cancelled"]; cancelled != true {
		t.Fatalf("expected tea timer to be cancelled, got %v", result)
	}
	if _, ok := scheduler.scheduled["tea"]; ok {
		t.Fatalf("expected tea timer to be removed")
	}
}
