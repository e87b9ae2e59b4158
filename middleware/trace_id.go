// Package middleware gin middlewares for the admin API
package middleware

import (
	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TraceIDKey gin.Context key holding the trace id
	TraceIDKey = "trace_id"

	// TraceIDHeader request/response header carrying the trace id
	TraceIDHeader = "X-Trace-ID"
)

// TraceConfig trace id middleware settings
type TraceConfig struct {
	Header               string
	EnableResponseHeader bool
	Generator            func() string
}

// DefaultTraceConfig uuid ids echoed in X-Trace-ID
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		Header:               TraceIDHeader,
		EnableResponseHeader: true,
		Generator:            func() string { return uuid.New().String() },
	}
}

// TraceID takes the OTel trace id when a span is active, otherwise the
// request header, otherwise a generated one; the id reaches every CtxZapLogger
// call made with the request context
func TraceID(cfg TraceConfig) gin.HandlerFunc {
	if cfg.Header == "" {
		cfg.Header = TraceIDHeader
	}
	if cfg.Generator == nil {
		cfg.Generator = func() string { return uuid.New().String() }
	}

	return func(c *gin.Context) {
		var traceID string
		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		} else {
			traceID = c.GetHeader(cfg.Header)
			if traceID == "" {
				traceID = cfg.Generator()
			}
			c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))
		}

		c.Set(TraceIDKey, traceID)
		if cfg.EnableResponseHeader {
			c.Writer.Header().Set(cfg.Header, traceID)
		}
		c.Next()
	}
}

// GetTraceID trace id stored by TraceID
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
