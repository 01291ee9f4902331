package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/testutil"
	"firestige.xyz/someip/pkg/plugin"
)

var (
	client = testutil.Endpoint{IP: "10.0.0.1", Port: 40000}
	server = testutil.Endpoint{IP: "10.0.0.2", Port: 30490}
)

func arpFrame() []byte {
	arp := make([]byte, 42)
	arp[12], arp[13] = 0x08, 0x06
	return arp
}

func drain(t *testing.T, s *Source) []core.RawPacket {
	t.Helper()
	out := make(chan core.RawPacket, 16)
	require.NoError(t, s.Capture(context.Background(), out))
	close(out)

	var pkts []core.RawPacket
	for p := range out {
		pkts = append(pkts, p)
	}
	return pkts
}

func openSource(t *testing.T, cfg map[string]any) *Source {
	t.Helper()
	s := New()
	require.NoError(t, s.Init(cfg))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func TestSource_Pcap(t *testing.T) {
	path := testutil.WritePcap(t,
		testutil.UDPFrame(client, server, testutil.MagicCookie()),
		testutil.TCPFrame(client, server, []byte("hello")),
	)
	s := openSource(t, map[string]any{"path": path})
	var _ plugin.Capturer = s

	pkts := drain(t, s)
	require.Len(t, pkts, 2)
	assert.Equal(t, core.LinkTypeEthernet, pkts[0].LinkType)
	assert.Equal(t, uint32(len(pkts[0].Data)), pkts[0].CaptureLen)
	assert.True(t, pkts[1].Timestamp.After(pkts[0].Timestamp))
	assert.Equal(t, uint64(2), s.Stats().PacketsReceived)
}

func TestSource_PcapNg(t *testing.T) {
	path := testutil.WritePcapNg(t,
		testutil.UDPFrame(client, server, testutil.MagicCookie()),
	)
	s := openSource(t, map[string]any{"path": path})

	pkts := drain(t, s)
	require.Len(t, pkts, 1)
	assert.Equal(t, core.LinkTypeEthernet, pkts[0].LinkType)
}

func TestSource_Prefilter(t *testing.T) {
	path := testutil.WritePcap(t,
		arpFrame(),
		testutil.UDPFrame(client, server, testutil.MagicCookie()),
		testutil.UDPFrame(client, server, testutil.MagicCookie(), 100),
		testutil.TCPFrame(client, server, []byte("x")),
	)
	s := openSource(t, map[string]any{"path": path, "prefilter": true})

	pkts := drain(t, s)
	assert.Len(t, pkts, 3)
	stats := s.Stats()
	assert.Equal(t, uint64(4), stats.PacketsReceived)
	assert.Equal(t, uint64(1), stats.PacketsFiltered)
}

func TestSource_Cancel(t *testing.T) {
	path := testutil.WritePcap(t,
		testutil.UDPFrame(client, server, testutil.MagicCookie()),
		testutil.UDPFrame(client, server, testutil.MagicCookie()),
	)
	s := openSource(t, map[string]any{"path": path})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// unbuffered and never read: the first send blocks until ctx is seen
	err := s.Capture(ctx, make(chan core.RawPacket))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSource_Errors(t *testing.T) {
	err := New().Init(map[string]any{})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	s := New()
	require.NoError(t, s.Init(map[string]any{"path": "/nonexistent/capture.pcap"}))
	assert.Error(t, s.Start(context.Background()))

	err = New().Capture(context.Background(), make(chan core.RawPacket))
	assert.ErrorIs(t, err, core.ErrSourceNotStarted)

	// Stop before Start is a no-op
	assert.NoError(t, New().Stop(context.Background()))
}
