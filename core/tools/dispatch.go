package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultDeliveryTimeout = 10 * time.Second

// Sender writes one frame to the realtime channel.
type Sender interface {
	SendJSON(message any) bool
}

// Scheduler runs a task on the goroutine owning the channel and waits a
// bounded time for it.
type Scheduler interface {
	Deliver(timeout time.Duration, task func()) error
}

// execution tracks one background tool call.
type execution struct {
	tool      string
	arguments map[string]any
	started   time.Time
}

// Engine resolves function calls to registered tools, runs them and answers
// every call with exactly one function_call_output followed by
// response.create.
//
// Dispatch is expected to be called from the goroutine owning the channel.
// Background tools hand their results back to that goroutine through the
// Scheduler.
type Engine struct {
	registry  *Registry
	sender    Sender
	scheduler Scheduler
	emit      events.Handler

	deliveryTimeout time.Duration

	mu      sync.Mutex
	running map[string]execution
	wg      sync.WaitGroup
}

type EngineOption func(*Engine)

func WithEventHandler(handler events.Handler) EngineOption {
	return func(e *Engine) {
		if handler != nil {
			e.emit = handler
		}
	}
}

// WithDeliveryTimeout bounds how long a background tool waits for the event
// loop to accept its result before dropping it.
func WithDeliveryTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) { e.deliveryTimeout = timeout }
}

// NewEngine creates an engine. A nil scheduler makes background tools send
// their results directly, which is only safe if sender is.
func NewEngine(registry *Registry, sender Sender, scheduler Scheduler, opts ...EngineOption) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Engine{
		registry:        registry,
		sender:          sender,
		scheduler:       scheduler,
		emit:            func(events.Event) {},
		deliveryTimeout: defaultDeliveryTimeout,
		running:         map[string]execution{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleResponseDone dispatches every function call of a response in order.
func (e *Engine) HandleResponseDone(ctx context.Context, view *realtime.ResponseDoneView) {
	for _, call := range view.FunctionCalls() {
		e.Dispatch(ctx, call)
	}
}

// Dispatch handles one function call. Inline tools are executed before it
// returns; background tools only get announced.
func (e *Engine) Dispatch(ctx context.Context, call realtime.FunctionCall) {
	ctx, span := tracer.Start(ctx, "dispatch tool call")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.CallID),
	)

	arguments, err := parseArguments(call.Arguments)
	if err != nil {
		err = fmt.Errorf("failed to parse arguments of %q: %w", call.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("dropping tool call with malformed arguments", "tool", call.Name, "call_id", call.CallID, "error", err)
		return
	}

	if call.CallID == "" {
		logger.Warn("dropping tool call without call id", "tool", call.Name)
		return
	}

	if running, ok := e.lookupRunning(call.CallID); ok {
		duplicateCalls.Add(ctx, 1)
		logger.Warn("tool call already running, ignoring duplicate",
			"tool", call.Name,
			"call_id", call.CallID,
			"running_since", running.started,
		)
		return
	}

	toolCalls.Add(ctx, 1)
	entry, ok := e.registry.Lookup(call.Name)
	if !ok {
		err := fmt.Errorf("%s: %q", toolNotFoundMessage, call.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("tool not found", "tool", call.Name, "call_id", call.CallID)
		toolFailures.Add(ctx, 1)

		e.emit(events.NewToolCallFailed(call.CallID, call.Name, toolNotFoundMessage))
		e.sendResult(call.CallID, errorResult(toolNotFoundMessage))
		return
	}

	span.SetAttributes(attribute.Bool("tool.background", entry.IsBackground()))
	e.emit(events.NewToolCallStarted(call.CallID, call.Name, call.Arguments, entry.IsBackground()))

	if entry.IsBackground() {
		e.startBackground(ctx, call, entry, arguments)
		return
	}

	output := e.execute(ctx, entry.Tool, call, arguments)
	e.sendResult(call.CallID, output)
}

// Running reports the call ids of background tools still executing.
func (e *Engine) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.running))
	for id := range e.running {
		ids = append(ids, id)
	}
	return ids
}

// Wait blocks until all background tools have finished. Sessions do not
// call it on shutdown; background tools are allowed to outlive them.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) lookupRunning(callID string) (execution, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	running, ok := e.running[callID]
	return running, ok
}

func (e *Engine) startBackground(ctx context.Context, call realtime.FunctionCall, entry Entry, arguments map[string]any) {
	e.mu.Lock()
	e.running[call.CallID] = execution{tool: call.Name, arguments: arguments, started: time.Now()}
	e.mu.Unlock()
	backgroundCalls.Add(ctx, 1)

	if !e.sender.SendJSON(realtime.NewToolStartedNotice(entry.EarlyMessage)) {
		logger.Warn("failed to announce background tool", "tool", call.Name, "call_id", call.CallID)
	}

	// the tool may outlive the session, so it must not inherit cancellation
	backgroundCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.running, call.CallID)
			e.mu.Unlock()
			backgroundCalls.Add(backgroundCtx, -1)
		}()

		output := e.execute(backgroundCtx, entry.Tool, call, arguments)
		e.deliver(call, output)
	}()
}

func (e *Engine) deliver(call realtime.FunctionCall, output string) {
	send := func() { e.sendResult(call.CallID, output) }
	if e.scheduler == nil {
		send()
		return
	}

	if err := e.scheduler.Deliver(e.deliveryTimeout, send); err != nil {
		logger.Error("dropping background tool result, event loop unavailable",
			"tool", call.Name,
			"call_id", call.CallID,
			"error", err,
		)
	}
}

// execute runs the tool and returns the normalized output. Errors and panics
// become {"error": "..."} results.
func (e *Engine) execute(ctx context.Context, tool Tool, call realtime.FunctionCall, arguments map[string]any) (output string) {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.CallID),
	)

	fail := func(err error) string {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		toolFailures.Add(ctx, 1)
		logger.Error("tool failed", "tool", call.Name, "call_id", call.CallID, "error", err)
		e.emit(events.NewToolCallFailed(call.CallID, call.Name, err.Error()))
		return errorResult(err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			output = fail(fmt.Errorf("tool panicked: %v", r))
		}
	}()

	result, err := invoke(ctx, tool, arguments)
	if errors.Is(err, ErrNoExecutionMethod) {
		return fail(err)
	} else if err != nil {
		return fail(fmt.Errorf("failed to execute tool %q: %w", call.Name, err))
	}

	output = normalizeResult(result)
	e.emit(events.NewToolCallCompleted(call.CallID, call.Name, output))
	return output
}

// sendResult answers a call and asks the server to continue the response.
func (e *Engine) sendResult(callID, output string) {
	if !e.sender.SendJSON(realtime.NewFunctionCallOutput(callID, output)) {
		logger.Error("failed to send tool result", "call_id", callID)
		return
	}
	if !e.sender.SendJSON(realtime.NewResponseCreate()) {
		logger.Error("failed to request response after tool result", "call_id", callID)
	}
}

// parseArguments decodes call arguments into an object. An empty string is
// treated as no arguments.
func parseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	var arguments map[string]any
	if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
		return nil, err
	} else if arguments == nil {
		return nil, errors.New("arguments must be a JSON object")
	}
	return arguments, nil
}
