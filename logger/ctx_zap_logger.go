package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CtxZapLogger context-aware zap wrapper.
// The module is bound at creation; callers only pass ctx.
type CtxZapLogger struct {
	base   *zap.Logger
	module string
	config *ManagerConfig
}

// NewCtxZapLogger wraps an existing zap logger (tests, third-party cores)
func NewCtxZapLogger(base *zap.Logger, module string) *CtxZapLogger {
	cfg := DefaultManagerConfig()
	cfg.EnableStacktrace = false
	return &CtxZapLogger{
		base:   base.With(zap.String("module", module)),
		module: module,
		config: &cfg,
	}
}

// NewNopLogger returns a logger that drops everything
func NewNopLogger() *CtxZapLogger {
	return NewCtxZapLogger(zap.NewNop(), "nop")
}

// DebugCtx logs at debug level with the trace id of ctx
func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, l.enrichFields(ctx, fields)...)
}

// InfoCtx logs at info level with the trace id of ctx
func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.enrichFields(ctx, fields)...)
}

// WarnCtx logs at warn level with the trace id of ctx
func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.enrichFields(ctx, fields)...)
}

// ErrorCtx logs at error level, appending a depth-limited stack when enabled
func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	enriched := l.enrichFields(ctx, fields)
	if l.config != nil && l.config.EnableStacktrace {
		// skip: runtime.Callers, CaptureStacktrace, ErrorCtx
		if stack := CaptureStacktrace(3, l.config.StacktraceDepth); stack != "" {
			enriched = append(enriched, zap.String("stack", stack))
		}
	}
	l.base.Error(msg, enriched...)
}

func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.DebugCtx(context.Background(), msg, fields...)
}

func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.InfoCtx(context.Background(), msg, fields...)
}

func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.WarnCtx(context.Background(), msg, fields...)
}

func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.ErrorCtx(context.Background(), msg, fields...)
}

// With returns a child logger with preset fields
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{
		base:   l.base.With(fields...),
		module: l.module,
		config: l.config,
	}
}

// Module returns the bound module name
func (l *CtxZapLogger) Module() string {
	return l.module
}

// GetZapLogger exposes the underlying logger for third-party clients
// (e.g. clientv3.Config.Logger)
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	return l.base
}

func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if l.config == nil {
		return fields
	}
	enriched := make([]zap.Field, 0, len(fields)+2)
	if l.config.AppName != "" {
		enriched = append(enriched, zap.String("app_name", l.config.AppName))
	}
	if l.config.EnableTraceID {
		if traceID := extractTraceID(ctx, l.config.TraceIDKey); traceID != "" {
			enriched = append(enriched, zap.String(l.config.TraceIDFieldName, traceID))
		}
	}
	return append(enriched, fields...)
}

type traceIDKey string

// extractTraceID prefers the OpenTelemetry span, then the configured ctx key
func extractTraceID(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	if key == "" {
		return ""
	}
	if v, ok := ctx.Value(traceIDKey(key)).(string); ok {
		return v
	}
	return ""
}

// WithTraceID stores a trace id under the default key
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey("trace_id"), traceID)
}
