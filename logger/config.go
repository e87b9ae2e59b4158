package logger

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
)

// ManagerConfig global logger configuration (shared by all modules)
type ManagerConfig struct {
	BaseLogDir    string `mapstructure:"base_log_dir"` // log root directory (default logs/)
	Level         string `mapstructure:"level"`
	AppName       string `mapstructure:"app_name"` // injected into every entry
	Encoding      string `mapstructure:"encoding"` // json or console
	EnableConsole bool   `mapstructure:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file"`

	// file rotation
	EnableDateInFilename bool   `mapstructure:"enable_date_in_filename"`
	DateFormat           string `mapstructure:"date_format"`
	MaxSize              int    `mapstructure:"max_size"` // MB
	MaxBackups           int    `mapstructure:"max_backups"`
	MaxAge               int    `mapstructure:"max_age"` // days
	Compress             bool   `mapstructure:"compress"`

	EnableCaller     bool `mapstructure:"enable_caller"`
	EnableStacktrace bool `mapstructure:"enable_stacktrace"`
	StacktraceDepth  int  `mapstructure:"stacktrace_depth"` // 0 = default depth

	// Trace ID extraction
	EnableTraceID    bool   `mapstructure:"enable_trace_id"`
	TraceIDKey       string `mapstructure:"trace_id_key"`        // context key (default "trace_id")
	TraceIDFieldName string `mapstructure:"trace_id_field_name"` // log field name (default "trace_id")
}

// DefaultManagerConfig returns the default manager configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		BaseLogDir:           "logs",
		Level:                "info",
		AppName:              "fit-registry",
		Encoding:             "json",
		EnableConsole:        true,
		EnableFile:           false,
		EnableDateInFilename: true,
		DateFormat:           "2006-01-02",
		MaxSize:              100,
		MaxBackups:           3,
		MaxAge:               28,
		Compress:             true,
		EnableCaller:         true,
		EnableStacktrace:     true,
		StacktraceDepth:      5,
		EnableTraceID:        true,
		TraceIDKey:           "trace_id",
		TraceIDFieldName:     "trace_id",
	}
}

// ApplyDefaults fills zero-valued fields in place.
// Booleans cannot be told apart from "unset" and are kept as they are.
func (c *ManagerConfig) ApplyDefaults() {
	d := DefaultManagerConfig()
	if c.BaseLogDir == "" {
		c.BaseLogDir = d.BaseLogDir
	}
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.Encoding == "" {
		c.Encoding = d.Encoding
	}
	if c.DateFormat == "" {
		c.DateFormat = d.DateFormat
	}
	if c.MaxSize == 0 {
		c.MaxSize = d.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = d.MaxBackups
	}
	if c.MaxAge == 0 {
		c.MaxAge = d.MaxAge
	}
	if c.StacktraceDepth == 0 {
		c.StacktraceDepth = d.StacktraceDepth
	}
	if c.TraceIDKey == "" {
		c.TraceIDKey = d.TraceIDKey
	}
	if c.TraceIDFieldName == "" {
		c.TraceIDFieldName = d.TraceIDFieldName
	}
}

// Validate checks enum and range fields
func (c ManagerConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, c.Level) {
		return fmt.Errorf("invalid log level: %s (valid values: %v)", c.Level, validLevels)
	}

	validEncodings := []string{"json", "console"}
	if !contains(validEncodings, c.Encoding) {
		return fmt.Errorf("invalid log encoding: %s (valid values: %v)", c.Encoding, validEncodings)
	}

	if c.MaxSize < 1 || c.MaxSize > 10000 {
		return fmt.Errorf("MaxSize must be between 1-10000 MB, current: %d", c.MaxSize)
	}
	if c.MaxBackups < 0 || c.MaxBackups > 1000 {
		return fmt.Errorf("MaxBackups must be between 0-1000, current: %d", c.MaxBackups)
	}
	if c.MaxAge < 0 || c.MaxAge > 3650 {
		return fmt.Errorf("MaxAge must be between 0-3650 days, current: %d", c.MaxAge)
	}
	return nil
}

// ParseLevel parses a level string, falling back to info
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// filePath builds logs/<module>/<module>-<level>[-<date>].log
func (c ManagerConfig) filePath(module, level string) string {
	name := module + "-" + level
	if c.EnableDateInFilename {
		name += "-" + time.Now().Format(c.DateFormat)
	}
	return filepath.Join(c.BaseLogDir, module, name+".log")
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
