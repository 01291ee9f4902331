// Package plugin defines plugin interfaces.
package plugin

import (
	"context"

	"firestige.xyz/someip/internal/core"
)

// Capturer produces raw packets. Capture blocks until the source is
// exhausted, ctx is cancelled or an error occurs; it never closes output.
type Capturer interface {
	Plugin
	Capture(ctx context.Context, output chan<- core.RawPacket) error
	Stats() CaptureStats
}

// CaptureStats represents capture statistics.
type CaptureStats struct {
	PacketsReceived uint64
	PacketsFiltered uint64
	PacketsDropped  uint64
}
