// Package console implements the console reporter.
// It prints one line per classification, as colored text or JSON.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/go-faster/errors"
	"github.com/mitchellh/mapstructure"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/log"
	"firestige.xyz/someip/pkg/plugin"
)

const Name = "console"

func init() {
	if err := plugin.RegisterReporter(Name, func() plugin.Reporter { return NewConsoleReporter() }); err != nil {
		panic(err)
	}
}

// Config represents console reporter configuration.
type Config struct {
	Format        string `mapstructure:"format"`         // "json" or "text", default "text"
	OnlyConfirmed bool   `mapstructure:"only_confirmed"` // drop excluded flows
}

// ConsoleReporter writes classifications to stdout.
type ConsoleReporter struct {
	cfg Config
	out io.Writer
	mu  sync.Mutex

	confirmed *color.Color
	excluded  *color.Color

	reportedCount atomic.Uint64
}

// NewConsoleReporter creates a new console reporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		cfg:       Config{Format: "text"},
		out:       os.Stdout,
		confirmed: color.New(color.FgGreen, color.Bold),
		excluded:  color.New(color.FgYellow),
	}
}

func (r *ConsoleReporter) Name() string { return Name }

// Init initializes the reporter with configuration.
func (r *ConsoleReporter) Init(config map[string]any) error {
	if err := mapstructure.Decode(config, &r.cfg); err != nil {
		return errors.Wrap(err, "decode console reporter config")
	}
	if r.cfg.Format == "" {
		r.cfg.Format = "text"
	}
	if r.cfg.Format != "json" && r.cfg.Format != "text" {
		return fmt.Errorf("invalid format %q, must be json or text: %w", r.cfg.Format, core.ErrConfigInvalid)
	}
	return nil
}

// SetOutput redirects output, e.g. to a buffer in tests.
func (r *ConsoleReporter) SetOutput(w io.Writer) {
	r.out = w
}

func (r *ConsoleReporter) Start(ctx context.Context) error {
	log.GetLogger().WithField("format", r.cfg.Format).Info("console reporter started")
	return nil
}

func (r *ConsoleReporter) Stop(ctx context.Context) error {
	log.GetLogger().WithField("total_reported", r.reportedCount.Load()).Info("console reporter stopped")
	return nil
}

// Report writes one line for pkt.
func (r *ConsoleReporter) Report(ctx context.Context, pkt *core.OutputPacket) error {
	if pkt == nil {
		return errors.New("nil packet")
	}
	rec := core.NewRecord(pkt)
	if r.cfg.OnlyConfirmed && rec.Verdict != "confirmed" {
		return nil
	}

	var line string
	if r.cfg.Format == "json" {
		data, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "json marshal")
		}
		line = string(data)
	} else {
		line = r.formatText(rec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintln(r.out, line); err != nil {
		return errors.Wrap(err, "write")
	}
	r.reportedCount.Add(1)
	return nil
}

// formatText renders
// [15:04:05.000] udp 10.0.0.1:40000 -> 10.0.0.2:30490 CONFIRMED (port_match) message_id=0x12340001 ...
func (r *ConsoleReporter) formatText(rec core.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s:%d -> %s:%d ",
		rec.Timestamp.Format("15:04:05.000"), rec.Transport,
		rec.SrcIP, rec.SrcPort, rec.DstIP, rec.DstPort)

	verdict := strings.ToUpper(rec.Verdict)
	if verdict == "" {
		verdict = strings.ToUpper(rec.PayloadType)
	}
	if rec.Verdict == "confirmed" {
		b.WriteString(r.confirmed.Sprint(verdict))
	} else {
		b.WriteString(r.excluded.Sprint(verdict))
	}
	if rec.Reason != "" {
		fmt.Fprintf(&b, " (%s)", rec.Reason)
	}

	for _, key := range []string{
		core.LabelSomeIPMessageID, core.LabelSomeIPMessageType, core.LabelSomeIPReturnCode,
	} {
		if v, ok := rec.Labels[key]; ok {
			fmt.Fprintf(&b, " %s=%s", strings.TrimPrefix(key, "someip."), v)
		}
	}
	fmt.Fprintf(&b, " len=%d", rec.PayloadLen)
	return b.String()
}

// Flush is a no-op; writes are unbuffered.
func (r *ConsoleReporter) Flush(ctx context.Context) error {
	return nil
}
