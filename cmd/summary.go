package cmd

import (
	"context"
	"sort"
	"sync"

	"firestige.xyz/someip/internal/core"
)

type summaryRow struct {
	Verdict string
	Reason  string
	Count   uint64
}

// summaryReporter tallies classifications by verdict and reason.
type summaryReporter struct {
	mu     sync.Mutex
	counts map[[2]string]uint64
}

func newSummaryReporter() *summaryReporter {
	return &summaryReporter{counts: make(map[[2]string]uint64)}
}

func (s *summaryReporter) Name() string                    { return "summary" }
func (s *summaryReporter) Init(map[string]any) error       { return nil }
func (s *summaryReporter) Start(ctx context.Context) error { return nil }
func (s *summaryReporter) Stop(ctx context.Context) error  { return nil }
func (s *summaryReporter) Flush(ctx context.Context) error { return nil }

func (s *summaryReporter) Report(ctx context.Context, pkt *core.OutputPacket) error {
	key := [2]string{pkt.Labels[core.LabelSomeIPVerdict], pkt.Labels[core.LabelSomeIPReason]}
	s.mu.Lock()
	s.counts[key]++
	s.mu.Unlock()
	return nil
}

// Rows returns the tally with confirmed verdicts first, then by count.
func (s *summaryReporter) Rows() []summaryRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]summaryRow, 0, len(s.counts))
	for k, n := range s.counts {
		rows = append(rows, summaryRow{Verdict: k[0], Reason: k[1], Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Verdict != rows[j].Verdict {
			return rows[i].Verdict < rows[j].Verdict
		}
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Reason < rows[j].Reason
	})
	return rows
}
