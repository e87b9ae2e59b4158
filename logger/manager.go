package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns one CtxZapLogger per module
type Manager struct {
	cfg     ManagerConfig
	loggers map[string]*CtxZapLogger
	bases   map[string]*zap.Logger
	writers map[string][]*lumberjack.Logger
	mu      sync.RWMutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// NewManager creates a standalone manager; zero fields of cfg get defaults
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		cfg:     cfg,
		loggers: make(map[string]*CtxZapLogger),
		bases:   make(map[string]*zap.Logger),
		writers: make(map[string][]*lumberjack.Logger),
	}
}

// InitManager initializes the global manager (first call wins)
func InitManager(cfg ManagerConfig) {
	managerOnce.Do(func() {
		globalManager = NewManager(cfg)
	})
}

// GetLogger returns the module logger, creating it on first use.
// The returned logger already carries the module field.
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// double check
	if l, ok := m.loggers[module]; ok {
		return l
	}

	base := m.createLogger(module).With(zap.String("module", module))
	l := &CtxZapLogger{
		base:   base.WithOptions(zap.AddCallerSkip(1)),
		module: module,
		config: &m.cfg,
	}
	m.loggers[module] = l
	m.bases[module] = base
	return l
}

// CloseAll flushes buffers and closes every file handle
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.bases {
		_ = l.Sync()
	}
	for _, ws := range m.writers {
		for _, w := range ws {
			_ = w.Close()
		}
	}

	m.loggers = make(map[string]*CtxZapLogger)
	m.bases = make(map[string]*zap.Logger)
	m.writers = make(map[string][]*lumberjack.Logger)
}

func (m *Manager) createLogger(module string) *zap.Logger {
	encoder := createEncoder(m.cfg.Encoding)
	level := ParseLevel(m.cfg.Level)
	var cores []zapcore.Core

	if m.cfg.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if m.cfg.EnableFile {
		infoWriter, infoLumber := m.createFileWriter(m.cfg.filePath(module, "info"))
		errorWriter, errorLumber := m.createFileWriter(m.cfg.filePath(module, "error"))
		m.writers[module] = []*lumberjack.Logger{infoLumber, errorLumber}

		// info file: configured level up to warn; error file: error and above
		cores = append(cores,
			zapcore.NewCore(encoder, infoWriter, zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl < zapcore.ErrorLevel
			})),
			zapcore.NewCore(encoder, errorWriter, zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel
			})),
		)
	}

	var opts []zap.Option
	if m.cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

func (m *Manager) createFileWriter(filename string) (zapcore.WriteSyncer, *lumberjack.Logger) {
	_ = os.MkdirAll(filepath.Dir(filename), 0755)
	lj := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    m.cfg.MaxSize,
		MaxBackups: m.cfg.MaxBackups,
		MaxAge:     m.cfg.MaxAge,
		Compress:   m.cfg.Compress,
		LocalTime:  true,
	}
	return zapcore.AddSync(lj), lj
}

func createEncoder(encoding string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encoding == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// GetLogger returns a module logger from the global manager
func GetLogger(module string) *CtxZapLogger {
	return Default().GetLogger(module)
}

// Default the global manager, initialized with defaults when InitManager
// was never called
func Default() *Manager {
	InitManager(DefaultManagerConfig())
	return globalManager
}

// CloseAll closes the global manager (call on process exit)
func CloseAll() {
	if globalManager == nil {
		return
	}
	globalManager.CloseAll()
}
