// Package httpx unified request binding and JSON envelope for gin handlers
package httpx

import "github.com/gin-gonic/gin"

const errorLoggingKey = "httpx:error_logging"

// ErrorLoggingConfig controls how HandleError logs
type ErrorLoggingConfig struct {
	// Enable log handled errors (default false)
	Enable bool `mapstructure:"enable"`

	// IgnoreHTTPStatus statuses never logged, e.g. 404
	IgnoreHTTPStatus []int `mapstructure:"ignore_http_status"`

	// FullErrorChain also log the wrapped cause chain
	FullErrorChain bool `mapstructure:"full_error_chain"`

	// LogLevel error, warn or info
	LogLevel string `mapstructure:"log_level"`
}

// DefaultErrorLoggingConfig logging disabled
func DefaultErrorLoggingConfig() ErrorLoggingConfig {
	return ErrorLoggingConfig{
		FullErrorChain: true,
		LogLevel:       "error",
	}
}

type errorLogging struct {
	enable    bool
	ignore    map[int]bool
	fullChain bool
	level     string
}

// ErrorLoggingMiddleware makes cfg visible to HandleError
func ErrorLoggingMiddleware(cfg ErrorLoggingConfig) gin.HandlerFunc {
	ignore := make(map[int]bool, len(cfg.IgnoreHTTPStatus))
	for _, status := range cfg.IgnoreHTTPStatus {
		ignore[status] = true
	}
	resolved := errorLogging{
		enable:    cfg.Enable,
		ignore:    ignore,
		fullChain: cfg.FullErrorChain,
		level:     cfg.LogLevel,
	}
	return func(c *gin.Context) {
		c.Set(errorLoggingKey, resolved)
		c.Next()
	}
}

func errorLoggingOf(c *gin.Context) errorLogging {
	if v, ok := c.Get(errorLoggingKey); ok {
		if cfg, ok := v.(errorLogging); ok {
			return cfg
		}
	}
	return errorLogging{fullChain: true, level: "error"}
}
