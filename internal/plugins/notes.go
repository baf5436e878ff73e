package plugins

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-realtime/core/tools"
)

type noteRequest struct {
	Text string `json:"text" jsonschema:"description=The note to write down"`
}

type noteWriter struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewNoteTool appends timestamped notes to the file at path.
func NewNoteTool(path string, now func() time.Time) tools.Tool {
	if now == nil {
		now = time.Now
	}
	writer := &noteWriter{path: path, now: now}

	return tools.NewTool("write_note", "Write a note down for the user.", writer.write)
}

func (w *noteWriter) write(ctx context.Context, request noteRequest) (any, error) {
	text := strings.TrimSpace(request.Text)
	if text == "" {
		return nil, fmt.Errorf("note is empty")
	}

	_, span := tracer.Start(ctx, "write note")
	defer span.End()

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open notes: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s\n", w.now().Format(time.RFC3339), strings.ReplaceAll(text, "\n", " "))
	if _, err := f.WriteString(line); err != nil {
		return nil, fmt.Errorf("failed to write note: %w", err)
	}

	logger.Info("note written", "path", w.path, "length", len(text))
	return map[string]any{"saved": true}, nil
}
