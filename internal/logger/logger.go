package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	SetEnabled(enabled bool)
	SetLevel(level string)
	Named(name string) Logger
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

//--------------------------------------------------------------------------------------------------

var _ Logger = (*noOpLogger)(nil)

type noOpLogger struct{}

func NoOp() Logger {
	return &noOpLogger{}
}

func (n *noOpLogger) SetEnabled(_ bool)        {}
func (n *noOpLogger) SetLevel(_ string)        {}
func (n *noOpLogger) Named(_ string) Logger    { return n }
func (n *noOpLogger) Debug(_ string, _ ...any) {}
func (n *noOpLogger) Info(_ string, _ ...any)  {}
func (n *noOpLogger) Error(_ string, _ ...any) {}

//--------------------------------------------------------------------------------------------------

var _ Logger = (*logger)(nil)

type logger struct {
	state *state
	sugar *zap.SugaredLogger
}

// state is shared between a logger and everything derived from it with Named.
type state struct {
	mux     sync.RWMutex
	enabled bool
	level   zap.AtomicLevel
}

// New returns a JSON-lines logger writing to w. It starts enabled at the error level.
func New(w io.Writer) Logger {
	level := zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), level)
	return &logger{
		state: &state{enabled: true, level: level},
		sugar: zap.New(core).Sugar(),
	}
}

// Open creates (or appends to) <dir>/<name>.log and returns a logger writing to it.
func Open(dir, name, level string) (Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("error creating log folder: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening log file: %w", err)
	}
	l := New(f)
	l.SetLevel(level)
	return l.Named(name), f, nil
}

func (l *logger) SetEnabled(enabled bool) {
	l.state.mux.Lock()
	defer l.state.mux.Unlock()
	l.state.enabled = enabled
}

func (l *logger) SetLevel(level string) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.ErrorLevel
	}
	l.state.level.SetLevel(lvl)
}

func (l *logger) Named(name string) Logger {
	return &logger{state: l.state, sugar: l.sugar.Named(name)}
}

func (l *logger) Debug(msg string, args ...any) {
	if l.isEnabled() {
		l.sugar.Debugf(msg, args...)
	}
}

func (l *logger) Info(msg string, args ...any) {
	if l.isEnabled() {
		l.sugar.Infof(msg, args...)
	}
}

func (l *logger) Error(msg string, args ...any) {
	if l.isEnabled() {
		l.sugar.Errorf(msg, args...)
	}
}

func (l *logger) isEnabled() bool {
	l.state.mux.RLock()
	defer l.state.mux.RUnlock()
	return l.state.enabled
}
