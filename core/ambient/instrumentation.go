package ambient

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-realtime/core/ambient"

var logger = otelslog.NewLogger(scopeName)
