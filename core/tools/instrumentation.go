package tools

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-realtime/core/tools"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	toolCalls, _       = meter.Int64Counter("tools.calls", metric.WithDescription("Tool calls dispatched"))
	toolFailures, _    = meter.Int64Counter("tools.failures", metric.WithDescription("Tool calls answered with an error result"))
	duplicateCalls, _  = meter.Int64Counter("tools.duplicate_calls", metric.WithDescription("Tool calls dropped because their call id was already running"))
	backgroundCalls, _ = meter.Int64UpDownCounter("tools.background_active", metric.WithDescription("Background tool calls in flight"))
)
