// Package logging provides the leveled, structured logger used across the
// service. It wraps zerolog: entries are written either as JSON lines
// (production) or through zerolog's console writer (development), and the
// request id carried by a context is attached to every entry logged with it.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the severity of a log entry
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var zerologLevels = map[Level]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// callerSkip points the caller field past log and the exported method to
// the code that asked for the entry.
var callerSkip = zerolog.CallerSkipFrameCount + 2

// Logger provides structured logging
type Logger struct {
	zl zerolog.Logger
}

var defaultLogger = New(os.Stdout, LevelInfo, false)

// New creates a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, minLevel Level, enableJSON bool) *Logger {
	lvl, ok := zerologLevels[minLevel]
	if !ok {
		lvl = zerolog.InfoLevel
	}
	if !enableJSON {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).
		Level(lvl).
		Hook(requestIDHook{}).
		With().
		Timestamp().
		CallerWithSkipFrameCount(callerSkip).
		Logger()
	return &Logger{zl: zl}
}

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// ParseLevel maps a config string to a Level, falling back to info.
func ParseLevel(s string) Level {
	lvl := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := zerologLevels[lvl]; ok {
		return lvl
	}
	return LevelInfo
}

// requestIDHook copies the request id from the event's context.
type requestIDHook struct{}

func (requestIDHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	if rid := RequestIDFromContext(e.GetCtx()); rid != "" {
		e.Str("request_id", rid)
	}
}

func (l *Logger) log(ctx context.Context, e *zerolog.Event, msg string, fields map[string]any, err error) {
	if ctx != nil {
		e = e.Ctx(ctx)
	}
	if err != nil {
		e = e.Err(err)
	}
	e.Fields(fields).Msg(msg)
}

func (l *Logger) Debug(msg string, fields map[string]any) {
	l.log(nil, l.zl.Debug(), msg, fields, nil)
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.log(nil, l.zl.Info(), msg, fields, nil)
}

func (l *Logger) Warn(msg string, fields map[string]any) {
	l.log(nil, l.zl.Warn(), msg, fields, nil)
}

func (l *Logger) Error(msg string, fields map[string]any, err error) {
	l.log(nil, l.zl.Error(), msg, fields, err)
}

// InfoContext logs at info level, tagging the entry with the request id in ctx.
func (l *Logger) InfoContext(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, l.zl.Info(), msg, fields, nil)
}

// WarnContext logs at warn level, tagging the entry with the request id in ctx.
func (l *Logger) WarnContext(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, l.zl.Warn(), msg, fields, nil)
}

// ErrorContext logs at error level, tagging the entry with the request id in ctx.
func (l *Logger) ErrorContext(ctx context.Context, msg string, fields map[string]any, err error) {
	l.log(ctx, l.zl.Error(), msg, fields, err)
}

// Global logging functions

func Debug(msg string, fields map[string]any) {
	defaultLogger.log(nil, defaultLogger.zl.Debug(), msg, fields, nil)
}

func Info(msg string, fields map[string]any) {
	defaultLogger.log(nil, defaultLogger.zl.Info(), msg, fields, nil)
}

func Warn(msg string, fields map[string]any) {
	defaultLogger.log(nil, defaultLogger.zl.Warn(), msg, fields, nil)
}

func Error(msg string, fields map[string]any, err error) {
	defaultLogger.log(nil, defaultLogger.zl.Error(), msg, fields, err)
}

func InfoContext(ctx context.Context, msg string, fields map[string]any) {
	defaultLogger.log(ctx, defaultLogger.zl.Info(), msg, fields, nil)
}

func WarnContext(ctx context.Context, msg string, fields map[string]any) {
	defaultLogger.log(ctx, defaultLogger.zl.Warn(), msg, fields, nil)
}

func ErrorContext(ctx context.Context, msg string, fields map[string]any, err error) {
	defaultLogger.log(ctx, defaultLogger.zl.Error(), msg, fields, err)
}
