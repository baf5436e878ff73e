package tools

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-realtime/core/realtime"
)

var (
	ErrDuplicateTool = errors.New("tool already registered")
	ErrInvalidTool   = errors.New("invalid tool")
)

// Entry is one registered tool. A non-empty EarlyMessage marks the tool as
// long running: it is announced to the user and executed in the background.
type Entry struct {
	Tool         Tool
	EarlyMessage string
}

// IsBackground reports whether calls of the tool run off the event loop.
func (e Entry) IsBackground() bool { return e.EarlyMessage != "" }

type RegisterOption func(*Entry)

// WithEarlyMessage registers the tool as long running with message as the
// notice the assistant speaks while it works.
func WithEarlyMessage(message string) RegisterOption {
	return func(e *Entry) { e.EarlyMessage = message }
}

// Registry maps tool names to tools. It is built explicitly and injected;
// there is no process wide registry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

// Register adds tool under its name. Names are unique.
func (r *Registry) Register(tool Tool, opts ...RegisterOption) error {
	if tool == nil || tool.Name() == "" {
		return fmt.Errorf("%w: tool must have a name", ErrInvalidTool)
	}

	entry := Entry{Tool: tool}
	for _, opt := range opts {
		opt(&entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[tool.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name())
	}
	r.entries[tool.Name()] = entry
	r.order = append(r.order, tool.Name())
	return nil
}

// MustRegister is Register for static setup code.
func (r *Registry) MustRegister(tool Tool, opts ...RegisterOption) {
	if err := r.Register(tool, opts...); err != nil {
		panic(err)
	}
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

func (r *Registry) Lookup(name string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// Names lists tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Entries returns a snapshot of the registry in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, r.entries[name])
	}

	var snapshot []Entry
	if err := copier.Copy(&snapshot, &entries); err != nil {
		logger.Warn("failed to copy registry entries", "error", err)
		return entries
	}
	return snapshot
}

// Schemas describes every tool implementing Describer for session.update.
// Tools without a description are callable but not advertised.
func (r *Registry) Schemas() []realtime.ToolSchema {
	schemas := []realtime.ToolSchema{}
	for _, entry := range r.Entries() {
		describer, ok := entry.Tool.(Describer)
		if !ok {
			logger.Debug("not advertising tool without description", "tool", entry.Tool.Name())
			continue
		}

		schema := realtime.ToolSchema{
			Type:        "function",
			Name:        entry.Tool.Name(),
			Description: describer.Description(),
		}
		if parameters := describer.Parameters(); parameters != nil {
			schema.Parameters = parameters
		}
		schemas = append(schemas, schema)
	}
	return schemas
}
