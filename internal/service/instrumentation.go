package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/smallbiznis/guildgate/internal/service"

// instrumented carries the logger and tracer shared by the services.
type instrumented struct {
	logger *zap.Logger
	tracer trace.Tracer
}

func newInstrumented(logger *zap.Logger) instrumented {
	return instrumented{logger: logger, tracer: otel.Tracer(tracerName)}
}

func (i instrumented) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if i.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return i.tracer.Start(ctx, name)
}

func (i instrumented) audit(event string, attrs ...any) {
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for n := 0; n+1 < len(attrs); n += 2 {
		key, ok := attrs[n].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[n+1]))
	}
	i.log().Info("audit", fields...)
}

func (i instrumented) log() *zap.Logger {
	if i.logger != nil {
		return i.logger
	}
	return zap.L()
}
