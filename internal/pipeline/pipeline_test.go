package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/flow"
	"firestige.xyz/someip/internal/testutil"
	"firestige.xyz/someip/pkg/plugin"
	"firestige.xyz/someip/pkg/someip"
	someipparser "firestige.xyz/someip/plugins/parser/someip"
)

// MockCapturer replays frames, then returns err.
type MockCapturer struct {
	frames [][]byte
	err    error
	block  bool // wait for ctx after the last frame
}

func (m *MockCapturer) Name() string                    { return "mock" }
func (m *MockCapturer) Init(map[string]any) error       { return nil }
func (m *MockCapturer) Start(ctx context.Context) error { return nil }
func (m *MockCapturer) Stop(ctx context.Context) error  { return nil }
func (m *MockCapturer) Stats() plugin.CaptureStats {
	return plugin.CaptureStats{PacketsReceived: uint64(len(m.frames))}
}

func (m *MockCapturer) Capture(ctx context.Context, out chan<- core.RawPacket) error {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, f := range m.frames {
		select {
		case out <- core.RawPacket{Data: f, Timestamp: base.Add(time.Duration(i) * time.Millisecond), CaptureLen: uint32(len(f)), OrigLen: uint32(len(f))}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

// MockReporter records every output.
type MockReporter struct {
	name    string
	fail    bool
	mu      sync.Mutex
	outputs []core.OutputPacket
	flushed int
}

func (m *MockReporter) Name() string                    { return m.name }
func (m *MockReporter) Init(map[string]any) error       { return nil }
func (m *MockReporter) Start(ctx context.Context) error { return nil }
func (m *MockReporter) Stop(ctx context.Context) error  { return nil }

func (m *MockReporter) Report(ctx context.Context, pkt *core.OutputPacket) error {
	if m.fail {
		return errors.New("broker unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs = append(m.outputs, *pkt)
	return nil
}

func (m *MockReporter) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed++
	return nil
}

func (m *MockReporter) Outputs() []core.OutputPacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.OutputPacket(nil), m.outputs...)
}

var (
	client = testutil.Endpoint{IP: "10.0.0.1", Port: 40000}
	sd     = testutil.Endpoint{IP: "10.0.0.2", Port: 30490}
	web    = testutil.Endpoint{IP: "10.0.0.3", Port: 8080}
)

func newPipeline(src plugin.Capturer, reporters ...plugin.Reporter) (*Pipeline, *flow.Table) {
	table := flow.NewTable(time.Minute, time.Minute)
	p := NewBuilder().
		WithSource("test").
		WithCapturer(src).
		WithParsers(someipparser.NewParser()).
		WithReporters(reporters...).
		WithFlowRegistry(table).
		WithWorkers(3).
		WithBufferSize(8).
		Build()
	return p, table
}

func TestPipeline_Classify(t *testing.T) {
	request := testutil.Request(0x1234, 0x0001, []byte{1, 2})
	src := &MockCapturer{frames: [][]byte{
		testutil.UDPFrame(client, sd, request),                 // confirmed by port
		testutil.UDPFrame(sd, client, request),                 // reverse direction, same flow
		testutil.UDPFrame(client, sd, request),                 // same flow again
		testutil.UDPFrame(client, web, request),                // port miss
		testutil.TCPFrame(client, web, testutil.MagicCookie()), // cookie on any port
		testutil.TCPFrame(client, web, nil),                    // no payload
		{0x00, 0x01},                                           // undecodable
	}}
	rep := &MockReporter{name: "mock"}
	p, table := newPipeline(src, rep)

	require.NoError(t, p.Run(context.Background()))

	stats := p.Stats()
	assert.Equal(t, uint64(7), stats.Received)
	assert.Equal(t, uint64(6), stats.Decoded)
	assert.Equal(t, uint64(1), stats.DecodeErrors)
	assert.Equal(t, uint64(3), stats.Parsed)
	assert.Equal(t, uint64(3), stats.Skipped)
	assert.Equal(t, uint64(2), stats.Confirmed)
	assert.Equal(t, uint64(1), stats.Excluded)
	assert.Equal(t, uint64(3), stats.Reported)
	assert.Equal(t, uint64(7), stats.Capture.PacketsReceived)
	assert.Equal(t, 3, stats.Flows)
	assert.Equal(t, 3, table.Count())
	assert.Equal(t, 1, rep.flushed)

	outputs := rep.Outputs()
	require.Len(t, outputs, 3)
	var reasons []string
	for _, out := range outputs {
		assert.Equal(t, "test", out.Source)
		assert.Equal(t, "someip", out.PayloadType)
		_, ok := out.Payload.(someip.Result)
		assert.True(t, ok)
		reasons = append(reasons, out.Labels[core.LabelSomeIPReason])
	}
	assert.ElementsMatch(t, []string{"port_match", "port_miss", "magic_cookie"}, reasons)
}

func TestPipeline_ReporterError(t *testing.T) {
	src := &MockCapturer{frames: [][]byte{
		testutil.UDPFrame(client, sd, testutil.MagicCookie()),
	}}
	bad := &MockReporter{name: "bad", fail: true}
	good := &MockReporter{name: "good"}
	p, _ := newPipeline(src, bad, good)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, uint64(1), p.Stats().ReportErrors)
	assert.Len(t, good.Outputs(), 1)
	assert.Equal(t, 1, bad.flushed)
}

func TestPipeline_CaptureError(t *testing.T) {
	boom := errors.New("device gone")
	p, _ := newPipeline(&MockCapturer{err: boom})

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_Cancel(t *testing.T) {
	src := &MockCapturer{
		frames: [][]byte{testutil.UDPFrame(client, sd, testutil.MagicCookie())},
		block:  true,
	}
	rep := &MockReporter{name: "mock"}
	p, _ := newPipeline(src, rep)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return p.Stats().Received == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
	assert.Equal(t, 1, rep.flushed)
}

func TestPipeline_NoCapturer(t *testing.T) {
	err := New(Config{}).Run(context.Background())
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestBuilder_Defaults(t *testing.T) {
	p := NewBuilder().WithWorkers(0).WithBufferSize(-1).Build()
	assert.Equal(t, DefaultWorkers, p.workers)
	assert.Equal(t, DefaultBufferSize, p.buffer)
	assert.NotNil(t, p.decoder)
}
