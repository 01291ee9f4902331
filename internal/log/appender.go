package log

import (
	"io"

	"github.com/go-faster/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// MultiWriter fans writes out to every appender. A failing appender does
// not stop the others.
type MultiWriter struct {
	writers []io.Writer
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

type FileAppenderOpt struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // files
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// AddFileAppender adds a size-rotated log file.
func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) error {
	if options.Filename == "" {
		return errors.New("file appender requires a filename")
	}
	m.writers = append(m.writers, &lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAge,
		Compress:   options.Compress,
	})
	return nil
}
