// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stages counted by PipelinePacketsTotal.
const (
	StageReceived     = "received"
	StageDecoded      = "decoded"
	StageDecodeError  = "decode_error"
	StageSkipped      = "skipped"
	StageParsed       = "parsed"
	StageParseError   = "parse_error"
	StageReported     = "reported"
	StageReportError  = "report_error"
	StageFiltered     = "filtered"
)

var (
	// ClassificationsTotal counts classifier verdicts.
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "someip_classifications_total",
			Help: "Total number of SOME/IP classifications by verdict and reason",
		},
		[]string{"verdict", "reason"},
	)

	// PipelinePacketsTotal counts packets per pipeline stage.
	PipelinePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "someip_pipeline_packets_total",
			Help: "Total number of packets processed in pipeline",
		},
		[]string{"stage"},
	)

	// PipelineLatencySeconds measures decode-to-report latency per packet.
	PipelineLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "someip_pipeline_latency_seconds",
			Help:    "Latency of per-packet processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
	)

	// FlowTableSize tracks the number of flows with a recorded verdict.
	FlowTableSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "someip_flow_table_size",
			Help: "Number of flows in the verdict table",
		},
	)

	// ReporterErrorsTotal counts reporter errors by name.
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "someip_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)
)
