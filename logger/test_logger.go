package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedLogger creates a logger recording every entry in memory.
// Usage:
//
//	log, logs := logger.NewObservedLogger("registry")
//	reg := registry.New(..., log)
//	assert.Equal(t, 1, logs.FilterMessage("Worker online").Len())
func NewObservedLogger(module string) (*CtxZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewCtxZapLogger(zap.New(core), module), logs
}
