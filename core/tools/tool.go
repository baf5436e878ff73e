package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// ErrNoExecutionMethod is reported for tools that implement neither
// ContextInvoker nor Executor.
var ErrNoExecutionMethod = errors.New("tool has no execution method")

// Tool is anything the assistant can call by name. What it can do beyond
// that is discovered through the optional interfaces below.
type Tool interface {
	Name() string
}

// ContextInvoker is the preferred execution method. The context is not
// cancelled when the session ends for tools running in the background.
type ContextInvoker interface {
	Invoke(ctx context.Context, arguments map[string]any) (any, error)
}

// Executor is the plain blocking execution method.
type Executor interface {
	Execute(arguments map[string]any) (any, error)
}

// Describer lets a tool advertise itself in the session configuration.
type Describer interface {
	Description() string
	Parameters() *jsonschema.Schema
}

// invoke runs tool with the best method it offers.
func invoke(ctx context.Context, tool Tool, arguments map[string]any) (any, error) {
	switch t := tool.(type) {
	case ContextInvoker:
		return t.Invoke(ctx, arguments)
	case Executor:
		return t.Execute(arguments)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoExecutionMethod, tool.Name())
	}
}

type typedTool[T any] struct {
	name        string
	description string
	parameters  *jsonschema.Schema
	fn          func(context.Context, T) (any, error)
}

// NewTool wraps fn as a tool whose parameters are described by T. Arguments
// are decoded into T through JSON before fn is called.
func NewTool[T any](name, description string, fn func(ctx context.Context, parameters T) (any, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.ReflectFromType(reflect.TypeFor[T]())
	schema.Version = ""
	schema.ID = ""

	return &typedTool[T]{name: name, description: description, parameters: schema, fn: fn}
}

func (t *typedTool[T]) Name() string                   { return t.name }
func (t *typedTool[T]) Description() string            { return t.description }
func (t *typedTool[T]) Parameters() *jsonschema.Schema { return t.parameters }

func (t *typedTool[T]) Invoke(ctx context.Context, arguments map[string]any) (any, error) {
	var parameters T
	raw, err := json.Marshal(arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &parameters); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", t.name, err)
	}
	return t.fn(ctx, parameters)
}

type funcTool struct {
	name        string
	description string
	parameters  *jsonschema.Schema
	fn          func(map[string]any) (any, error)
}

// NewFunc wraps a blocking function taking raw arguments. A nil parameters
// schema advertises an object without properties.
func NewFunc(name, description string, parameters *jsonschema.Schema, fn func(arguments map[string]any) (any, error)) Tool {
	if parameters == nil {
		parameters = &jsonschema.Schema{Type: "object", Properties: jsonschema.NewProperties()}
	}
	return &funcTool{name: name, description: description, parameters: parameters, fn: fn}
}

func (t *funcTool) Name() string                   { return t.name }
func (t *funcTool) Description() string            { return t.description }
func (t *funcTool) Parameters() *jsonschema.Schema { return t.parameters }

func (t *funcTool) Execute(arguments map[string]any) (any, error) {
	return t.fn(arguments)
}
