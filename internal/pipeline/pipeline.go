// Package pipeline implements the packet processing pipeline engine.
//
// One capture goroutine feeds a dispatcher that decodes every frame and hands
// it to a worker chosen by the hash of its canonical flow key, so both
// directions of a flow are always handled by the same worker. Workers run the
// parser chain and send one OutputPacket per handled packet to every reporter.
package pipeline

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/core/decoder"
	"firestige.xyz/someip/internal/log"
	"firestige.xyz/someip/internal/metrics"
	"firestige.xyz/someip/pkg/plugin"
)

const (
	DefaultWorkers    = 4
	DefaultBufferSize = 1024
)

// Pipeline runs capture, decode, parse and report for one source.
type Pipeline struct {
	source    string
	capturer  plugin.Capturer
	decoder   decoder.Decoder
	parsers   []plugin.Parser
	reporters []plugin.Reporter
	flows     plugin.FlowRegistry
	workers   int
	buffer    int
	metrics   *Metrics
}

// Config contains pipeline configuration.
type Config struct {
	Source     string // label copied into every OutputPacket
	Capturer   plugin.Capturer
	Decoder    decoder.Decoder // defaults to decoder.New()
	Parsers    []plugin.Parser
	Reporters  []plugin.Reporter
	Flows      plugin.FlowRegistry // handed to FlowRegistryAware parsers
	Workers    int
	BufferSize int // per channel
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.New()
	}
	if cfg.Flows != nil {
		for _, p := range cfg.Parsers {
			if aware, ok := p.(plugin.FlowRegistryAware); ok {
				aware.SetFlowRegistry(cfg.Flows)
			}
		}
	}

	return &Pipeline{
		source:    cfg.Source,
		capturer:  cfg.Capturer,
		decoder:   cfg.Decoder,
		parsers:   cfg.Parsers,
		reporters: cfg.Reporters,
		flows:     cfg.Flows,
		workers:   cfg.Workers,
		buffer:    cfg.BufferSize,
		metrics:   &Metrics{},
	}
}

// Run blocks until the capturer is exhausted and every queued packet has
// been reported, or until ctx is cancelled. Reporters are flushed before
// Run returns. A cancelled ctx is not reported as an error.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.capturer == nil {
		return errors.Wrap(core.ErrConfigInvalid, "pipeline has no capturer")
	}
	logger := log.GetLogger().WithFields(map[string]interface{}{
		"source":  p.source,
		"workers": p.workers,
	})
	logger.Info("pipeline starting")

	g, gctx := errgroup.WithContext(ctx)

	raw := make(chan core.RawPacket, p.buffer)
	queues := make([]chan core.DecodedPacket, p.workers)
	for i := range queues {
		queues[i] = make(chan core.DecodedPacket, p.buffer)
	}

	g.Go(func() error {
		defer close(raw)
		if err := p.capturer.Capture(gctx, raw); err != nil && gctx.Err() == nil {
			return errors.Wrap(err, "capture")
		}
		return nil
	})

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		return p.dispatchLoop(gctx, raw, queues)
	})

	for i, q := range queues {
		g.Go(func() error {
			p.workerLoop(gctx, i, q)
			return nil
		})
	}

	err := g.Wait()
	p.flush()

	if err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("pipeline failed")
		return err
	}
	s := p.Stats()
	logger.WithFields(map[string]interface{}{
		"received":  s.Received,
		"decoded":   s.Decoded,
		"parsed":    s.Parsed,
		"confirmed": s.Confirmed,
		"excluded":  s.Excluded,
	}).Info("pipeline stopped")
	return nil
}

// dispatchLoop decodes raw packets and routes them to workers by flow hash.
func (p *Pipeline) dispatchLoop(ctx context.Context, raw <-chan core.RawPacket, queues []chan core.DecodedPacket) error {
	for pkt := range raw {
		p.metrics.Received.Add(1)
		metrics.PipelinePacketsTotal.WithLabelValues(metrics.StageReceived).Inc()

		decoded, err := p.decoder.Decode(pkt)
		if err != nil {
			p.metrics.DecodeErrors.Add(1)
			metrics.PipelinePacketsTotal.WithLabelValues(metrics.StageDecodeError).Inc()
			log.GetLogger().WithError(err).Debug("decode failed")
			continue
		}
		p.metrics.Decoded.Add(1)
		metrics.PipelinePacketsTotal.WithLabelValues(metrics.StageDecoded).Inc()

		if !decoded.HasTransport() {
			p.metrics.Skipped.Add(1)
			metrics.PipelinePacketsTotal.WithLabelValues(metrics.StageSkipped).Inc()
			continue
		}

		q := queues[workerFor(&decoded, len(queues))]
		select {
		case q <- decoded:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *Pipeline) workerLoop(ctx context.Context, id int, queue <-chan core.DecodedPacket) {
	for {
		select {
		case <-ctx.Done():
			return
		case decoded, ok := <-queue:
			if !ok {
				return
			}
			start := time.Now()
			p.processPacket(ctx, id, &decoded)
			metrics.PipelineLatencySeconds.Observe(time.Since(start).Seconds())
		}
	}
}

// processPacket runs the first parser that accepts the packet and reports
// its result. Packets no parser accepts are counted as skipped.
func (p *Pipeline) processPacket(ctx context.Context, worker int, decoded *core.DecodedPacket) {
	var (
		parser  plugin.Parser
		payload any
		labels  core.Labels
	)
	for _, candidate := range p.parsers {
		if !candidate.CanHandle(decoded) {
			continue
		}
		var err error
		payload, labels, err = candidate.Handle(decoded)
		if err != nil {
			p.metrics.ParseErrors.Add(1)
			metrics.PipelinePacketsTotal.WithLabelValues(metrics.StageParseError).Inc()
			log.GetLogger().WithField("parser", candidate.Name()).WithError(err).Debug("parser failed")
			continue
		}
		parser = candidate
		break
	}
	if parser == nil {
		p.metrics.Skipped.Add(1)
		metrics.PipelinePacketsTotal.WithLabelValues(metrics.StageSkipped).Inc()
		return
	}

	p.metrics.Parsed.Add(1)
	metrics.PipelinePacketsTotal.WithLabelValues(metrics.StageParsed).Inc()
	p.countVerdict(labels)
	if p.flows != nil {
		metrics.FlowTableSize.Set(float64(p.flows.Count()))
	}

	output := core.OutputPacket{
		Source:      p.source,
		Worker:      worker,
		Timestamp:   decoded.Timestamp,
		SrcIP:       decoded.IP.SrcIP,
		DstIP:       decoded.IP.DstIP,
		SrcPort:     decoded.Transport.SrcPort,
		DstPort:     decoded.Transport.DstPort,
		Protocol:    decoded.Transport.Protocol,
		Labels:      labels,
		PayloadType: parser.Name(),
		Payload:     payload,
		PayloadLen:  len(decoded.Payload),
	}

	for _, reporter := range p.reporters {
		if err := reporter.Report(ctx, &output); err != nil {
			p.metrics.ReportErrors.Add(1)
			metrics.PipelinePacketsTotal.WithLabelValues(metrics.StageReportError).Inc()
			metrics.ReporterErrorsTotal.WithLabelValues(reporter.Name()).Inc()
			log.GetLogger().WithField("reporter", reporter.Name()).WithError(err).Error("reporter failed")
			continue
		}
	}
	p.metrics.Reported.Add(1)
	metrics.PipelinePacketsTotal.WithLabelValues(metrics.StageReported).Inc()
}

func (p *Pipeline) countVerdict(labels core.Labels) {
	verdict, ok := labels[core.LabelSomeIPVerdict]
	if !ok {
		return
	}
	switch verdict {
	case "confirmed":
		p.metrics.Confirmed.Add(1)
	case "excluded":
		p.metrics.Excluded.Add(1)
	}
	metrics.ClassificationsTotal.WithLabelValues(verdict, labels[core.LabelSomeIPReason]).Inc()
}

// flush uses a fresh context so reporters drain even after cancellation.
func (p *Pipeline) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, reporter := range p.reporters {
		if err := reporter.Flush(ctx); err != nil {
			log.GetLogger().WithField("reporter", reporter.Name()).WithError(err).Error("reporter flush failed")
		}
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Received:     p.metrics.Received.Load(),
		Decoded:      p.metrics.Decoded.Load(),
		DecodeErrors: p.metrics.DecodeErrors.Load(),
		Skipped:      p.metrics.Skipped.Load(),
		Parsed:       p.metrics.Parsed.Load(),
		ParseErrors:  p.metrics.ParseErrors.Load(),
		Reported:     p.metrics.Reported.Load(),
		ReportErrors: p.metrics.ReportErrors.Load(),
		Confirmed:    p.metrics.Confirmed.Load(),
		Excluded:     p.metrics.Excluded.Load(),
	}
	if p.capturer != nil {
		s.Capture = p.capturer.Stats()
	}
	if p.flows != nil {
		s.Flows = p.flows.Count()
	}
	return s
}

// Stats represents pipeline statistics.
type Stats struct {
	Capture      plugin.CaptureStats
	Received     uint64
	Decoded      uint64
	DecodeErrors uint64
	Skipped      uint64
	Parsed       uint64
	ParseErrors  uint64
	Reported     uint64
	ReportErrors uint64
	Confirmed    uint64
	Excluded     uint64
	Flows        int
}
