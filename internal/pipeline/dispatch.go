package pipeline

import (
	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/flow"
	"firestige.xyz/someip/pkg/plugin"
)

// workerFor returns the worker index (0-based) for pkt. Both directions of a
// flow map to the same worker. numWorkers must be > 0.
func workerFor(pkt *core.DecodedPacket, numWorkers int) int {
	return int(flow.Hash(plugin.FlowKeyOf(pkt).Canonical()) % uint64(numWorkers))
}
