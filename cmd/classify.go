package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"firestige.xyz/someip/internal/config"
	"firestige.xyz/someip/internal/flow"
	"firestige.xyz/someip/internal/log"
	"firestige.xyz/someip/internal/metrics"
	"firestige.xyz/someip/internal/pipeline"
	"firestige.xyz/someip/internal/source/afpacket"
	"firestige.xyz/someip/internal/source/file"
	"firestige.xyz/someip/pkg/plugin"
	parser "firestige.xyz/someip/plugins/parser/someip"
)

type classifyOptions struct {
	readFile      string
	iface         string
	workers       int
	reporters     []string
	format        string
	onlyConfirmed bool
	noPrefilter   bool
	summary       bool
}

func newClassifyCmd(opts *globalOptions) *cobra.Command {
	o := &classifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify the flows of a capture file or a live interface",
		Long: `Classify replays a pcap or pcapng file, or captures live from an interface,
classifies the first payload of every TCP and UDP flow as SOME/IP or not and
sends one record per flow to the configured reporters.

Reporters come from the configuration file unless --reporter is given.
Without either, the console reporter is used.

Examples:
  someip classify -r trace.pcapng
  someip classify -r trace.pcap --format json --only-confirmed
  someip classify -c someip.yml -r trace.pcap --reporter kafka
  someip classify -i eth0 --only-confirmed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.run(ctx, cmd.OutOrStdout(), opts.cfg)
		},
	}
	cmd.Flags().StringVarP(&o.readFile, "read", "r", "", "capture file to read")
	cmd.Flags().StringVarP(&o.iface, "interface", "i", "", "interface to capture from (linux, needs CAP_NET_RAW)")
	cmd.Flags().IntVarP(&o.workers, "workers", "w", 0, "parse workers (overrides pipeline.workers)")
	cmd.Flags().StringSliceVar(&o.reporters, "reporter", nil, "reporters to use (console|kafka)")
	cmd.Flags().StringVar(&o.format, "format", "", "console output format (text|json)")
	cmd.Flags().BoolVar(&o.onlyConfirmed, "only-confirmed", false, "console: print SOME/IP flows only")
	cmd.Flags().BoolVar(&o.noPrefilter, "no-prefilter", false, "disable the BPF pre-filter")
	cmd.Flags().BoolVar(&o.summary, "summary", true, "print a summary table when done")
	cmd.MarkFlagsMutuallyExclusive("read", "interface")
	cmd.MarkFlagsOneRequired("read", "interface")
	return cmd
}

func (o *classifyOptions) run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	logger := log.GetLogger()

	if o.workers > 0 {
		cfg.Pipeline.Workers = o.workers
	}

	source, sourceName, err := o.buildSource(cfg)
	if err != nil {
		return err
	}

	someipParser := parser.NewParser()
	if err := someipParser.Init(cfg.Classifier.ParserConfig()); err != nil {
		return err
	}

	reporters, err := o.buildReporters(cfg, out)
	if err != nil {
		return err
	}
	tally := newSummaryReporter()
	reporters = append(reporters, tally)

	var started []plugin.Plugin
	defer func() {
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(context.Background()); err != nil {
				logger.WithField("plugin", started[i].Name()).WithError(err).Warn("stop failed")
			}
		}
	}()
	for _, p := range append([]plugin.Plugin{source, someipParser}, toPlugins(reporters)...) {
		if err := p.Start(ctx); err != nil {
			return errors.Wrapf(err, "start %s", p.Name())
		}
		started = append(started, p)
	}

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Stop(context.Background())
	}

	p := pipeline.NewBuilder().
		WithSource(sourceName).
		WithCapturer(source).
		WithParsers(someipParser).
		WithReporters(reporters...).
		WithFlowRegistry(flow.NewTable(cfg.Flow.TTL, cfg.Flow.CleanupInterval)).
		WithWorkers(cfg.Pipeline.Workers).
		WithBufferSize(cfg.Pipeline.BufferSize).
		Build()

	if err := p.Run(ctx); err != nil {
		return err
	}

	if o.summary {
		renderSummary(out, p.Stats(), tally)
	}
	return nil
}

// buildSource returns the capture file source, or the live source when an
// interface was given.
func (o *classifyOptions) buildSource(cfg *config.Config) (plugin.Capturer, string, error) {
	prefilter := cfg.Source.Prefilter && !o.noPrefilter
	if o.iface != "" {
		live := afpacket.New()
		err := live.Init(map[string]any{
			"device":         o.iface,
			"snap_len":       cfg.Source.Live.SnapLen,
			"buffer_size_mb": cfg.Source.Live.BufferSizeMB,
			"timeout_ms":     cfg.Source.Live.TimeoutMs,
			"prefilter":      prefilter,
		})
		return live, o.iface, err
	}
	replay := file.New()
	err := replay.Init(map[string]any{
		"path":      o.readFile,
		"prefilter": prefilter,
	})
	return replay, o.readFile, err
}

// buildReporters resolves reporter names to initialized reporters. Settings
// come from the matching configuration entry; console flags override them.
func (o *classifyOptions) buildReporters(cfg *config.Config, out io.Writer) ([]plugin.Reporter, error) {
	entries := cfg.Reporters
	if len(o.reporters) > 0 {
		entries = make([]config.ReporterConfig, 0, len(o.reporters))
		for _, name := range o.reporters {
			entries = append(entries, reporterEntry(cfg, name))
		}
	}
	if len(entries) == 0 {
		entries = []config.ReporterConfig{{Name: "console"}}
	}

	reporters := make([]plugin.Reporter, 0, len(entries))
	for _, entry := range entries {
		r, err := plugin.NewReporter(entry.Name)
		if err != nil {
			return nil, err
		}
		settings := make(map[string]any, len(entry.Config)+2)
		for k, v := range entry.Config {
			settings[k] = v
		}
		if entry.Name == "console" {
			if o.format != "" {
				settings["format"] = o.format
			}
			if o.onlyConfirmed {
				settings["only_confirmed"] = true
			}
		}
		if err := r.Init(settings); err != nil {
			return nil, errors.Wrapf(err, "init reporter %s", entry.Name)
		}
		if w, ok := r.(interface{ SetOutput(io.Writer) }); ok {
			w.SetOutput(out)
		}
		reporters = append(reporters, r)
	}
	return reporters, nil
}

func reporterEntry(cfg *config.Config, name string) config.ReporterConfig {
	for _, entry := range cfg.Reporters {
		if entry.Name == name {
			return entry
		}
	}
	return config.ReporterConfig{Name: name}
}

func toPlugins(reporters []plugin.Reporter) []plugin.Plugin {
	out := make([]plugin.Plugin, len(reporters))
	for i, r := range reporters {
		out[i] = r
	}
	return out
}

func renderSummary(out io.Writer, stats pipeline.Stats, tally *summaryReporter) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Packets")
	t.AppendHeader(table.Row{"Stage", "Count"})
	t.AppendRows([]table.Row{
		{"read", stats.Capture.PacketsReceived},
		{"prefiltered", stats.Capture.PacketsFiltered},
		{"decoded", stats.Decoded},
		{"decode errors", stats.DecodeErrors},
		{"skipped", stats.Skipped},
		{"classified", stats.Parsed},
		{"report errors", stats.ReportErrors},
	})
	t.Render()

	t = table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Flows")
	t.AppendHeader(table.Row{"Verdict", "Reason", "Flows"})
	for _, row := range tally.Rows() {
		t.AppendRow(table.Row{row.Verdict, row.Reason, row.Count})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"", "total", fmt.Sprintf("%d confirmed / %d", stats.Confirmed, stats.Confirmed+stats.Excluded)})
	t.Render()
}
