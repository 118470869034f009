// Package log provides the process logger, a zap SugaredLogger behind a small interface.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	// Logger is a contract for the logger.
	Logger interface {
		Debugf(format string, args ...any)
		Infof(format string, args ...any)
		Warnf(format string, args ...any)
		Errorf(format string, args ...any)
		Fatalf(format string, args ...any)
		With(args ...any) Logger
		Flush() error
	}

	zapLogger struct {
		log *zap.SugaredLogger
	}
)

// Output is the destination of all log lines. The debug console swaps the
// underlying writer so log lines don't clobber its prompt.
var Output = &SwappableWriter{w: os.Stderr}

// New returns a logger writing human readable lines to Output.
// An unknown level falls back to info.
func New(level string) Logger {
	atom := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		if err := atom.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			atom.SetLevel(zap.InfoLevel)
		}
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(Output),
		atom,
	)
	return &zapLogger{log: zap.New(core).Sugar()}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return &zapLogger{log: zap.NewNop().Sugar()}
}

func (l *zapLogger) Debugf(format string, args ...any) { l.log.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.log.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.log.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.log.Errorf(format, args...) }
func (l *zapLogger) Fatalf(format string, args ...any) { l.log.Fatalf(format, args...) }

// With returns a child logger with the given key/value pairs attached
func (l *zapLogger) With(args ...any) Logger {
	return &zapLogger{log: l.log.With(args...)}
}

// Flush writes out any buffered entries
func (l *zapLogger) Flush() error {
	return l.log.Sync()
}

// SwappableWriter is an io.Writer whose target can be replaced at runtime
type SwappableWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// Swap replaces the target writer and returns the previous one
func (s *SwappableWriter) Swap(w io.Writer) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.w
	s.w = w
	return prev
}

func (s *SwappableWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
