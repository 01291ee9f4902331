package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestGetLoggerBeforeInit(t *testing.T) {
	l := GetLogger()
	if l == nil {
		t.Fatal("expected default logger, got nil")
	}
	if !l.IsInfoEnabled() {
		t.Error("default logger should log at info")
	}
	if l.IsDebugEnabled() {
		t.Error("default logger should not log at debug")
	}
}

func TestFormatter(t *testing.T) {
	f := &formatter{pattern: "%time [%level] %msg %field|%caller", time: "15:04:05"}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "flow excluded",
		Data:    logrus.Fields{"reason": "port_miss", "dst_port": 8080},
	}
	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	want := "10:30:00 [WARNING] flow excluded dst_port=8080,reason=port_miss|-"
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestBuildFieldsEmpty(t *testing.T) {
	if got := buildFields(&logrus.Entry{}); got != "" {
		t.Errorf("expected empty fields, got %q", got)
	}
}

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiWriter().Add(&a).Add(failingWriter{}).Add(&b)

	n, err := m.Write([]byte("line\n"))
	if n != 5 {
		t.Errorf("expected 5 bytes, got %d", n)
	}
	if err == nil {
		t.Error("expected error from failing appender")
	}
	if a.String() != "line\n" || b.String() != "line\n" {
		t.Errorf("appenders after a failure must still receive data: %q %q", a.String(), b.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAddFileAppender(t *testing.T) {
	if err := NewMultiWriter().AddFileAppender(FileAppenderOpt{}); err == nil {
		t.Error("expected error for empty filename")
	}

	path := filepath.Join(t.TempDir(), "someip.log")
	m := NewMultiWriter()
	if err := m.AddFileAppender(FileAppenderOpt{Filename: path, MaxSize: 1}); err != nil {
		t.Fatalf("AddFileAppender failed: %v", err)
	}
	if _, err := m.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestInit(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() {
		mu.Lock()
		logger = prev
		mu.Unlock()
	})

	path := filepath.Join(t.TempDir(), "someip.log")
	err := Init(Config{
		Level:   "debug",
		Pattern: "[%level] %msg %field\n",
		File:    FileAppenderOpt{Enabled: true, Filename: path},
	})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	l := GetLogger()
	if !l.IsDebugEnabled() {
		t.Error("expected debug level after Init")
	}
	l.WithField("message_id", "0xFFFF0000").Debug("magic cookie")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "[DEBUG] magic cookie message_id=0xFFFF0000") {
		t.Errorf("unexpected log line %q", data)
	}
}

func TestInitFileWithoutName(t *testing.T) {
	err := Init(Config{File: FileAppenderOpt{Enabled: true}})
	if err == nil {
		t.Error("expected error for file appender without filename")
	}
}

func TestInitInvalidLevelFallsBack(t *testing.T) {
	l := newLogger(Config{Level: "loud"}, NewMultiWriter())
	if !l.IsInfoEnabled() || l.IsDebugEnabled() {
		t.Error("invalid level should fall back to info")
	}
}

func TestWithFieldDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	parent := newLogger(Config{Pattern: "%msg %field\n"}, NewMultiWriter().Add(&buf))

	parent.WithField("flow", "udp/10.0.0.1:40000").Info("child")
	parent.Info("parent")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if lines[0] != "child flow=udp/10.0.0.1:40000" {
		t.Errorf("unexpected child line %q", lines[0])
	}
	if lines[1] != "parent " {
		t.Errorf("parent picked up child fields: %q", lines[1])
	}
}
