package middleware

import (
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogConfig request log settings
type RequestLogConfig struct {
	// SkipPaths paths never logged (e.g. /fit/health)
	SkipPaths []string
}

// RequestLog structured access log: 5xx at error, 4xx at warn, rest at info
func RequestLog(log *logger.CtxZapLogger, cfg RequestLogConfig) gin.HandlerFunc {
	if log == nil {
		log = logger.GetLogger("admin")
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("body_size", c.Writer.Size()),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, zap.String("error", msg))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.ErrorCtx(ctx, "HTTP request", fields...)
		case status >= 400:
			log.WarnCtx(ctx, "HTTP request", fields...)
		default:
			log.InfoCtx(ctx, "HTTP request", fields...)
		}
	}
}
