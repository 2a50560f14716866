package transcript

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-transcript/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	handledEvents, _ = meter.Int64Counter("transcript.events.handled",
		metric.WithDescription("Realtime events reduced into the transcript"))
	fallbackRuns, _ = meter.Int64Counter("transcript.fallback.runs",
		metric.WithDescription("Fallback transcription attempts by outcome"))
)
