// Package plugins holds the concrete tools the assistant binary offers to
// the model.
package plugins

import (
	"fmt"
	"net/http"

	"github.com/koscakluka/ema-realtime/core/tools"
)

const noteEarlyMessage = "Give me a moment, I'm writing that down."

type Config struct {
	WeatherURL string
	NotesPath  string
	HTTPClient *http.Client
	// Timers enables set_timer and cancel_timer when set.
	Timers Scheduler
}

// Register adds the weather, clock, note and timer tools to registry. The
// note tool runs in the background behind an early message.
func Register(registry *tools.Registry, cfg Config) error {
	if err := registry.Register(NewWeatherTool(cfg.WeatherURL, cfg.HTTPClient)); err != nil {
		return fmt.Errorf("failed to register weather tool: %w", err)
	}
	if err := registry.Register(NewClockTool(nil)); err != nil {
		return fmt.Errorf("failed to register clock tool: %w", err)
	}
	if cfg.NotesPath != "" {
		if err := registry.Register(NewNoteTool(cfg.NotesPath, nil), tools.WithEarlyMessage(noteEarlyMessage)); err != nil {
			return fmt.Errorf("failed to register note tool: %w", err)
		}
	}
	if cfg.Timers != nil {
		for _, tool := range NewTimerTools(cfg.Timers) {
			if err := registry.Register(tool); err != nil {
				return fmt.Errorf("failed to register %s tool: %w", tool.Name(), err)
			}
		}
	}
	return nil
}
