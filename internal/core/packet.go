// Package core defines core data structures with zero external dependencies.
package core

import (
	"net/netip"
	"time"
)

// RawPacket is one captured frame.
type RawPacket struct {
	Data       []byte    // Raw frame data
	Timestamp  time.Time // Capture timestamp
	CaptureLen uint32    // Actual captured length
	OrigLen    uint32    // Original frame length
	LinkType   uint16    // LinkType* of Data; zero means Ethernet
}

// DecodedPacket is the result of L2-L4 protocol stack decoding.
type DecodedPacket struct {
	Timestamp  time.Time
	Ethernet   EthernetHeader
	IP         IPHeader
	Transport  TransportHeader
	Payload    []byte // Application layer payload, zero-copy slice
	CaptureLen uint32
	OrigLen    uint32
}

// HasTransport reports whether the packet carried TCP or UDP.
func (p *DecodedPacket) HasTransport() bool {
	return p.Transport.Protocol == ProtocolTCP || p.Transport.Protocol == ProtocolUDP
}

// OutputPacket is one classification result sent to reporters.
type OutputPacket struct {
	// Envelope
	Source    string // capture source name, e.g. the pcap path
	Worker    int
	Timestamp time.Time

	// Network context
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8

	// Labels set by the parser
	Labels Labels

	// Typed parser result
	PayloadType string // e.g. "someip"
	Payload     any    // Concrete type determined by PayloadType, Reporter does type assertion
	PayloadLen  int
}
