// Package logx is the zerolog setup shared by the board service and boardctl.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const errorKey = "err"

// Config is the log section of the boardctl configuration. With neither
// console nor file enabled, logs go to the console writer.
type Config struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// ParseLevel accepts zerolog level names plus "warning". Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("unknown level %q", level)
	}
	return lvl, nil
}

// Field is one key/value pair attached to a log line.
type Field struct {
	key   string
	value any
}

func String(key, value string) Field    { return Field{key, value} }
func Int(key string, value int) Field   { return Field{key, value} }
func Bool(key string, value bool) Field { return Field{key, value} }

// Err attaches err under "err"; a nil error adds nothing.
func Err(err error) Field {
	if err == nil {
		return Field{}
	}
	return Field{errorKey, err}
}

func (f Field) event(e *zerolog.Event) {
	switch v := f.value.(type) {
	case nil:
	case string:
		e.Str(f.key, v)
	case int:
		e.Int(f.key, v)
	case bool:
		e.Bool(f.key, v)
	case error:
		e.AnErr(f.key, v)
	default:
		e.Interface(f.key, v)
	}
}

func (f Field) context(c zerolog.Context) zerolog.Context {
	switch v := f.value.(type) {
	case nil:
		return c
	case string:
		return c.Str(f.key, v)
	case int:
		return c.Int(f.key, v)
	case bool:
		return c.Bool(f.key, v)
	case error:
		return c.AnErr(f.key, v)
	default:
		return c.Interface(f.key, v)
	}
}

// Logger writes structured lines. The zero value discards everything.
type Logger struct {
	zl     zerolog.Logger
	active bool
}

// Nop returns a logger that discards everything.
func Nop() Logger { return Logger{} }

// NewWriter logs JSON lines to w. An unknown level falls back to info.
func NewWriter(w io.Writer, level string) Logger {
	lvl, _ := ParseLevel(level)
	return Logger{zl: newRoot(w, lvl), active: true}
}

func newRoot(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// With returns a logger that adds fields to every line.
func (l Logger) With(fields ...Field) Logger {
	if !l.active || len(fields) == 0 {
		return l
	}
	c := l.zl.With()
	for _, f := range fields {
		c = f.context(c)
	}
	return Logger{zl: c.Logger(), active: true}
}

func (l Logger) Debug(msg string, fields ...Field) { l.write(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.write(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.write(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.write(zerolog.ErrorLevel, msg, fields) }

func (l Logger) write(lvl zerolog.Level, msg string, fields []Field) {
	if !l.active {
		return
	}
	e := l.zl.WithLevel(lvl)
	if e == nil {
		return
	}
	for _, f := range fields {
		f.event(e)
	}
	e.Msg(msg)
}

// Sink owns the log file opened by New.
type Sink struct {
	file *os.File
}

// Close closes the log file, if any.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// New builds the logger described by cfg. Console output goes to console in
// zerolog's human-readable format; the file sink gets JSON lines.
func New(cfg Config, console io.Writer) (Logger, *Sink, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return Logger{}, nil, err
	}
	sink := &Sink{}
	var writers []io.Writer
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "schedboard.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return Logger{}, nil, fmt.Errorf("open log file: %w", err)
		}
		sink.file = f
		writers = append(writers, f)
	}
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
	}
	w := writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}
	return Logger{zl: newRoot(w, lvl), active: true}, sink, nil
}
