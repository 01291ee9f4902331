// Package log provides the process-wide structured logger.
package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

const (
	DefaultPattern = "%time [%level] %msg %field\n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

// Config configures the logger.
type Config struct {
	Level   string          `mapstructure:"level" yaml:"level"`
	Pattern string          `mapstructure:"pattern" yaml:"pattern"`
	Time    string          `mapstructure:"time" yaml:"time"`
	Caller  bool            `mapstructure:"caller" yaml:"caller"`
	File    FileAppenderOpt `mapstructure:"file" yaml:"file"`
}

var (
	mu     sync.RWMutex
	logger Logger = newLogger(Config{Level: "info"}, NewMultiWriter().Add(os.Stdout))
)

// GetLogger returns the global logger. Before Init it logs at info level to stdout.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the global logger. Stdout is always an output; the rotating
// file appender is added when cfg.File.Enabled is set.
func Init(cfg Config) error {
	out := NewMultiWriter().Add(os.Stdout)
	if cfg.File.Enabled {
		if err := out.AddFileAppender(cfg.File); err != nil {
			return err
		}
	}
	l := newLogger(cfg, out)

	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

func newLogger(cfg Config, out *MultiWriter) Logger {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if cfg.Time == "" {
		cfg.Time = DefaultTime
	}

	l := logrus.New()
	l.SetFormatter(&formatter{
		pattern: cfg.Pattern,
		time:    cfg.Time,
	})
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetReportCaller(cfg.Caller)
	l.SetOutput(out)

	return newAdapter(l)
}
