package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

// Logger provides leveled printf-style logging on top of zap.
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger writing to stdout at the given level
// (DEBUG, INFO, WARNING, ERROR; anything else means INFO).
func NewLogger(level string, name string) *Logger {
	atom := zap.NewAtomicLevelAt(parseLevel(level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), atom)
	base := zap.New(core).Named(name)

	return &Logger{name: name, sugar: base.Sugar(), level: atom}
}

// -----------------------------------------------------------------------------

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{name: "nop", sugar: zap.NewNop().Sugar(), level: zap.NewAtomicLevel()}
}

// -----------------------------------------------------------------------------

// Named derives a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: l.name + "." + name, sugar: l.sugar.Named(name), level: l.level}
}

// -----------------------------------------------------------------------------

// DebugEnabled reports whether debug messages are written.
func (l *Logger) DebugEnabled() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

// -----------------------------------------------------------------------------

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Errorf("CRITICAL: "+format, args...)
	_ = l.sugar.Sync()
	os.Exit(1)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// -----------------------------------------------------------------------------

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
