// Package logging provides the leveled line logger used by every component.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes "RFC3339 LEVEL component: message" lines. A nil *Logger
// discards everything.
type Logger struct {
	out       *log.Logger
	level     Level
	component string
}

// New creates a logger writing to w at the given minimum level.
func New(w io.Writer, level Level) *Logger {
	return &Logger{out: log.New(w, "", 0), level: level}
}

// Discard returns a logger that writes nothing.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

// With returns a logger tagged with a component name.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	c := *l
	c.component = component
	return &c
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *Logger) log(level Level, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	component := l.component
	if component == "" {
		component = "programme"
	}
	l.out.Printf("%s %s %s: %s", time.Now().Format(time.RFC3339), level, component, msg)
}
