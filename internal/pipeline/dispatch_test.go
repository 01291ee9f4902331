package pipeline

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/someip/internal/core"
)

func decodedFlow(src, dst string, sport, dport uint16) core.DecodedPacket {
	return core.DecodedPacket{
		IP: core.IPHeader{
			SrcIP:    netip.MustParseAddr(src),
			DstIP:    netip.MustParseAddr(dst),
			Protocol: core.ProtocolUDP,
		},
		Transport: core.TransportHeader{Protocol: core.ProtocolUDP, SrcPort: sport, DstPort: dport},
	}
}

func TestWorkerFor_Affinity(t *testing.T) {
	fwd := decodedFlow("10.0.0.1", "10.0.0.2", 40000, 30490)
	rev := decodedFlow("10.0.0.2", "10.0.0.1", 30490, 40000)

	for _, n := range []int{1, 2, 4, 7, 16} {
		w := workerFor(&fwd, n)
		assert.Equal(t, w, workerFor(&rev, n), "both directions on one worker (n=%d)", n)
		assert.GreaterOrEqual(t, w, 0)
		assert.Less(t, w, n)
	}
}

func TestWorkerFor_Spread(t *testing.T) {
	const n = 4
	seen := make(map[int]bool)
	for port := uint16(40000); port < 40064; port++ {
		pkt := decodedFlow("10.0.0.1", "10.0.0.2", port, 30501)
		seen[workerFor(&pkt, n)] = true
	}
	assert.Len(t, seen, n, "64 flows should reach every worker")
}
