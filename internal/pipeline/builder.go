package pipeline

import (
	"firestige.xyz/someip/internal/core/decoder"
	"firestige.xyz/someip/pkg/plugin"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			Workers:    DefaultWorkers,
			BufferSize: DefaultBufferSize,
		},
	}
}

// WithSource sets the source label.
func (b *Builder) WithSource(source string) *Builder {
	b.config.Source = source
	return b
}

// WithCapturer sets the packet capturer.
func (b *Builder) WithCapturer(c plugin.Capturer) *Builder {
	b.config.Capturer = c
	return b
}

// WithDecoder sets the packet decoder.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithParsers sets the parser chain.
func (b *Builder) WithParsers(parsers ...plugin.Parser) *Builder {
	b.config.Parsers = parsers
	return b
}

// WithReporters sets the reporters.
func (b *Builder) WithReporters(reporters ...plugin.Reporter) *Builder {
	b.config.Reporters = reporters
	return b
}

// WithFlowRegistry sets the registry shared by flow-aware parsers.
func (b *Builder) WithFlowRegistry(flows plugin.FlowRegistry) *Builder {
	b.config.Flows = flows
	return b
}

// WithWorkers sets the number of parse workers.
func (b *Builder) WithWorkers(n int) *Builder {
	b.config.Workers = n
	return b
}

// WithBufferSize sets the channel buffer size.
func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
