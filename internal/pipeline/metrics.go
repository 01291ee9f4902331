package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters.
type Metrics struct {
	Received     atomic.Uint64
	Decoded      atomic.Uint64
	DecodeErrors atomic.Uint64
	Skipped      atomic.Uint64
	Parsed       atomic.Uint64
	ParseErrors  atomic.Uint64
	Reported     atomic.Uint64
	ReportErrors atomic.Uint64

	// Verdicts of parsers that emit someip.verdict labels.
	Confirmed atomic.Uint64
	Excluded  atomic.Uint64
}
