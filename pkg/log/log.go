// Package log provides structured logging for the GMWM engine.
//
// The package wraps github.com/rs/zerolog behind a small Logger interface so that
// estimation code logs key/value pairs without depending on zerolog directly:
//
//	logger := log.GetLoggerWithName("gmwm").With(log.ComponentKey, "master")
//	logger.Info("Estimation completed",
//		log.OperationKey, log.OperationMaster,
//		log.IterationKey, 4,
//		log.ObjectiveKey, 1.3e-4,
//	)
//
// A process-wide provider is configured once with SetupLogger; estimators that
// accept a Logger option fall back to it.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Shared field keys.
const (
	ComponentKey  = "component"
	ModelNameKey  = "model_name"
	OperationKey  = "operation"
	PhaseKey      = "phase"
	DurationMsKey = "duration_ms"
	SamplesKey    = "n_samples"
	ScalesKey     = "n_scales"
	ParamsKey     = "n_params"
	IterationKey  = "iteration"
	ObjectiveKey  = "objective"
	DeltaKey      = "delta"
	ReplicatesKey = "replicates"
	MethodKey     = "method"
	StageKey      = "stage"
	ErrorKey      = "error"
)

// Operation values.
const (
	OperationUpdate = "update"
	OperationMaster = "master"
	OperationFit    = "fit"
)

// Phase values.
const (
	PhaseStartingValues = "starting_values"
	PhaseFirstFit       = "first_fit"
	PhaseReweight       = "reweight"
	PhaseCovariance     = "covariance"
	PhaseBootstrap      = "bootstrap"
)

// Logger is the structured logging interface used by the engine.
// Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...interface{}) {
	l.event(l.zl.Debug(), fields).Msg(msg)
}

func (l *zerologLogger) Info(msg string, fields ...interface{}) {
	l.event(l.zl.Info(), fields).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, fields ...interface{}) {
	l.event(l.zl.Warn(), fields).Msg(msg)
}

func (l *zerologLogger) Error(msg string, fields ...interface{}) {
	l.event(l.zl.Error(), fields).Msg(msg)
}

func (l *zerologLogger) With(fields ...interface{}) Logger {
	if len(fields) == 0 {
		return l
	}
	return &zerologLogger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *zerologLogger) event(e *zerolog.Event, fields []interface{}) *zerolog.Event {
	if len(fields) == 0 {
		return e
	}
	return e.Fields(fields)
}

type zerologProvider struct {
	base zerolog.Logger
}

// NewZerologProvider returns a provider writing JSON lines to stderr at level.
func NewZerologProvider(level zerolog.Level) LoggerProvider {
	return NewZerologProviderWithWriter(os.Stderr, level)
}

// NewZerologProviderWithWriter returns a provider writing JSON lines to w at level.
func NewZerologProviderWithWriter(w io.Writer, level zerolog.Level) LoggerProvider {
	return &zerologProvider{
		base: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

func (p *zerologProvider) GetLogger() Logger {
	return &zerologLogger{zl: p.base}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{zl: p.base.With().Str("logger", name).Logger()}
}

// ToLogLevel parses a level name, defaulting to info.
func ToLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

var (
	mu       sync.RWMutex
	provider LoggerProvider = NewZerologProvider(zerolog.InfoLevel)
	global                  = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// SetupLogger configures the process-wide provider with a console writer.
func SetupLogger(level string) {
	lvl := ToLogLevel(level)
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}

	mu.Lock()
	defer mu.Unlock()
	global = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	provider = &zerologProvider{base: global}
}

// SetProvider replaces the process-wide provider. A zerolog provider also
// becomes the logger returned by GetLogger and used by LogError.
func SetProvider(p LoggerProvider) {
	mu.Lock()
	defer mu.Unlock()
	provider = p
	if zp, ok := p.(*zerologProvider); ok {
		global = zp.base
	}
}

// GetLogger returns the process-wide zerolog logger.
func GetLogger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := global
	return &l
}

// GetLoggerWithName returns a named logger from the process-wide provider.
func GetLoggerWithName(name string) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// LogError logs err with msg on the process-wide logger.
func LogError(err error, msg string) {
	GetLogger().Error().Err(err).Msg(msg)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (n nopLogger) With(...interface{}) Logger { return n }

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }
