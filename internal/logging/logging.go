// Package logging forwards records emitted through the OpenTelemetry log API
// to a slog handler, so the otelslog loggers of the core packages end up in
// the same output as the host's own logs.
package logging

import (
	"context"
	"errors"
	"log/slog"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Install registers a logger provider that writes every record to handler as
// the global OpenTelemetry logger provider. Shut the provider down on exit.
func Install(handler slog.Handler) *sdklog.LoggerProvider {
	provider := NewLoggerProvider(handler)
	global.SetLoggerProvider(provider)
	return provider
}

// NewLoggerProvider builds a provider that synchronously exports to handler.
func NewLoggerProvider(handler slog.Handler) *sdklog.LoggerProvider {
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewSimpleProcessor(NewExporter(handler))),
	)
}

// Exporter is an sdklog.Exporter writing to a slog handler.
type Exporter struct {
	handler slog.Handler
}

var _ sdklog.Exporter = (*Exporter)(nil)

func NewExporter(handler slog.Handler) *Exporter {
	return &Exporter{handler: handler}
}

func (e *Exporter) Export(ctx context.Context, records []sdklog.Record) error {
	var errs []error
	for _, record := range records {
		level := Level(record.Severity())
		if !e.handler.Enabled(ctx, level) {
			continue
		}

		out := slog.NewRecord(record.Timestamp(), level, message(record.Body()), 0)
		if scope := record.InstrumentationScope().Name; scope != "" {
			out.AddAttrs(slog.String("scope", scope))
		}
		record.WalkAttributes(func(kv otellog.KeyValue) bool {
			out.AddAttrs(Attr(kv))
			return true
		})

		if err := e.handler.Handle(ctx, out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Exporter) Shutdown(context.Context) error   { return nil }
func (e *Exporter) ForceFlush(context.Context) error { return nil }

// Level maps an OpenTelemetry severity back to the slog level otelslog
// derived it from. Unset severities are treated as info.
func Level(severity otellog.Severity) slog.Level {
	if severity == otellog.SeverityUndefined {
		return slog.LevelInfo
	}
	return slog.Level(int(severity) - int(otellog.SeverityInfo))
}

// Attr converts an OpenTelemetry key value into a slog attribute.
func Attr(kv otellog.KeyValue) slog.Attr {
	return slog.Attr{Key: kv.Key, Value: value(kv.Value)}
}

func value(v otellog.Value) slog.Value {
	switch v.Kind() {
	case otellog.KindBool:
		return slog.BoolValue(v.AsBool())
	case otellog.KindFloat64:
		return slog.Float64Value(v.AsFloat64())
	case otellog.KindInt64:
		return slog.Int64Value(v.AsInt64())
	case otellog.KindString:
		return slog.StringValue(v.AsString())
	case otellog.KindMap:
		attrs := make([]slog.Attr, 0, len(v.AsMap()))
		for _, kv := range v.AsMap() {
			attrs = append(attrs, Attr(kv))
		}
		return slog.GroupValue(attrs...)
	default:
		return slog.StringValue(v.String())
	}
}

func message(body otellog.Value) string {
	if body.Kind() == otellog.KindString {
		return body.AsString()
	}
	return body.String()
}
