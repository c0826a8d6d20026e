package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the logging level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = map[Level]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

// Config mirrors the logging section of the config file.
type Config struct {
	Enabled bool
	Level   string
	File    string
	Console bool
}

type sink struct {
	mu      sync.RWMutex
	level   Level
	out     *log.Logger
	closer  io.Closer
	enabled bool
}

var global = &sink{level: Info, out: log.New(os.Stdout, "", 0), enabled: true}

// Init configures the global logger. It may be called again to reconfigure;
// a previously opened log file is closed.
func Init(cfg Config) error {
	if !cfg.Enabled {
		global.swap(nil, nil, Info, false)
		return nil
	}

	var writers []io.Writer
	var closer io.Closer
	if cfg.File != "" {
		dir := filepath.Dir(cfg.File)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	global.swap(log.New(io.MultiWriter(writers...), "", 0), closer, ParseLevel(cfg.Level), true)
	return nil
}

// SetOutput redirects logging to w at the given level.
func SetOutput(w io.Writer, level Level) {
	global.swap(log.New(w, "", 0), nil, level, true)
}

func (s *sink) swap(out *log.Logger, closer io.Closer, level Level, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer != nil {
		s.closer.Close()
	}
	s.out, s.closer, s.level, s.enabled = out, closer, level, enabled
}

// ParseLevel maps a level name to a Level, defaulting to Info.
func ParseLevel(levelStr string) Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func emit(level Level, component, format string, args ...interface{}) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if !global.enabled || global.out == nil || global.level > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("2006-01-02 15:04:05")
	if component != "" {
		global.out.Printf("[%s] [%s] [%s] %s", ts, levelNames[level], component, msg)
		return
	}
	global.out.Printf("[%s] [%s] %s", ts, levelNames[level], msg)
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) { emit(Debug, "", format, args...) }

// Infof logs an info message.
func Infof(format string, args ...interface{}) { emit(Info, "", format, args...) }

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) { emit(Warn, "", format, args...) }

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) { emit(Error, "", format, args...) }

// Component tags messages with a component name.
type Component string

// Named returns a component-scoped logger.
func Named(name string) Component { return Component(name) }

// Debugf logs a debug message for the component.
func (c Component) Debugf(format string, args ...interface{}) {
	emit(Debug, string(c), format, args...)
}

// Infof logs an info message for the component.
func (c Component) Infof(format string, args ...interface{}) {
	emit(Info, string(c), format, args...)
}

// Warnf logs a warning for the component.
func (c Component) Warnf(format string, args ...interface{}) {
	emit(Warn, string(c), format, args...)
}

// Errorf logs an error message for the component.
func (c Component) Errorf(format string, args ...interface{}) {
	emit(Error, string(c), format, args...)
}
