// Package plugin defines plugin interfaces.
package plugin

import (
	"net/netip"

	"firestige.xyz/someip/internal/core"
)

// Parser parses application-layer protocols.
type Parser interface {
	Plugin
	CanHandle(pkt *core.DecodedPacket) bool
	Handle(pkt *core.DecodedPacket) (payload any, labels core.Labels, err error)
}

// FlowRegistry is the interface for per-run flow state storage.
// Parsers use it to remember what they decided about a flow.
type FlowRegistry interface {
	Get(key FlowKey) (any, bool)
	Set(key FlowKey, value any)
	Delete(key FlowKey)
	Range(f func(key FlowKey, value any) bool)
	Count() int
	Clear()
}

// FlowKey uniquely identifies a network flow using 5-tuple.
type FlowKey struct {
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
	Proto   uint8
}

// FlowKeyOf returns the directional key of pkt.
func FlowKeyOf(pkt *core.DecodedPacket) FlowKey {
	return FlowKey{
		SrcIP:   pkt.IP.SrcIP,
		DstIP:   pkt.IP.DstIP,
		SrcPort: pkt.Transport.SrcPort,
		DstPort: pkt.Transport.DstPort,
		Proto:   pkt.Transport.Protocol,
	}
}

// Canonical returns the key shared by both directions of the flow: the
// endpoint with the lower (address, port) pair becomes the source.
func (k FlowKey) Canonical() FlowKey {
	if c := k.SrcIP.Compare(k.DstIP); c > 0 || (c == 0 && k.SrcPort > k.DstPort) {
		return k.Reverse()
	}
	return k
}

// Reverse swaps source and destination.
func (k FlowKey) Reverse() FlowKey {
	return FlowKey{
		SrcIP:   k.DstIP,
		DstIP:   k.SrcIP,
		SrcPort: k.DstPort,
		DstPort: k.SrcPort,
		Proto:   k.Proto,
	}
}

// FlowRegistryAware is an optional interface that parsers can implement
// to receive a FlowRegistry during wire-up.
type FlowRegistryAware interface {
	SetFlowRegistry(registry FlowRegistry)
}
