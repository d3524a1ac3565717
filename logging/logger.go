package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type Field struct {
	Key   string
	Value any
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}

func (NopLogger) Info(string, ...Field) {}

func (NopLogger) Warn(string, ...Field) {}

func (NopLogger) Error(string, ...Field) {}

func With(logger Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}

	return logger
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Component tags every record written through logger with component=name.
func Component(logger Logger, name string) Logger {
	logger = With(logger)
	if _, ok := logger.(NopLogger); ok {
		return logger
	}

	return &tagged{next: logger, fields: []Field{F("component", name)}}
}

type tagged struct {
	next   Logger
	fields []Field
}

func (t *tagged) merge(fields []Field) []Field {
	out := make([]Field, 0, len(t.fields)+len(fields))
	out = append(out, t.fields...)
	return append(out, fields...)
}

func (t *tagged) Debug(msg string, fields ...Field) { t.next.Debug(msg, t.merge(fields)...) }

func (t *tagged) Info(msg string, fields ...Field) { t.next.Info(msg, t.merge(fields)...) }

func (t *tagged) Warn(msg string, fields ...Field) { t.next.Warn(msg, t.merge(fields)...) }

func (t *tagged) Error(msg string, fields ...Field) { t.next.Error(msg, t.merge(fields)...) }

// Setup builds the process slog logger. format is "json" or "text"; anything
// else falls back to json. A nil writer means stderr.
func Setup(service, version, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("version", version),
	)
}

// Slog adapts a *slog.Logger to Logger.
type Slog struct {
	log *slog.Logger
}

func NewSlog(log *slog.Logger) *Slog {
	if log == nil {
		log = slog.Default()
	}

	return &Slog{log: log}
}

func (s *Slog) Debug(msg string, fields ...Field) { s.emit(slog.LevelDebug, msg, fields) }

func (s *Slog) Info(msg string, fields ...Field) { s.emit(slog.LevelInfo, msg, fields) }

func (s *Slog) Warn(msg string, fields ...Field) { s.emit(slog.LevelWarn, msg, fields) }

func (s *Slog) Error(msg string, fields ...Field) { s.emit(slog.LevelError, msg, fields) }

func (s *Slog) emit(level slog.Level, msg string, fields []Field) {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}

	s.log.LogAttrs(context.Background(), level, msg, attrs...)
}
