package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-realtime/core/playback"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	chunksPlayed, _  = meter.Int64Counter("playback.chunks_played", metric.WithDescription("Audio chunks written to the output device"))
	chunksDropped, _ = meter.Int64Counter("playback.chunks_dropped", metric.WithDescription("Audio chunks discarded by barge-in, decode errors or device failures"))
	deviceReopens, _ = meter.Int64Counter("playback.device_reopens", metric.WithDescription("Self-healing output device reopen attempts"))
)
