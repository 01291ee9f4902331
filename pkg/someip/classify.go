// Package someip classifies the first datagram of a flow as SOME/IP or rejects it.
//
// Classification is a pure function of the transport payload and two pieces of
// transport metadata (protocol number and destination port):
//
//  1. Five structural gates over the 16-byte mandatory header. The first
//     failing gate excludes the flow.
//  2. Magic Cookie and Magic Cookie ACK message ids are confirmed or excluded
//     on their fixed sub-fields alone, never by port.
//  3. Service Discovery is recognized but not parsed; it falls through.
//  4. Everything else is confirmed only when the destination port is on the
//     policy's allow-list for the transport.
//
// A header that passes every structural gate is necessary but not sufficient
// for general traffic: the port allow-list decides.
package someip

import (
	"fmt"
	"slices"
)

// IP protocol numbers understood by the port fallback.
const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// Transport is the transport metadata the classifier needs.
type Transport struct {
	Protocol uint8
	DstPort  uint16
}

// Verdict is the two-valued classification outcome.
type Verdict uint8

const (
	Excluded Verdict = iota
	Confirmed
)

func (v Verdict) String() string {
	if v == Confirmed {
		return "confirmed"
	}
	return "excluded"
}

// Reason explains a verdict.
type Reason uint8

const (
	ReasonTooShort Reason = iota
	ReasonLengthMismatch
	ReasonProtocolVersion
	ReasonMessageType
	ReasonReturnCode
	ReasonMagicCookieMismatch
	ReasonPortMiss

	ReasonMagicCookie
	ReasonMagicCookieAck
	ReasonPortMatch
)

var reasonNames = [...]string{
	ReasonTooShort:            "too_short",
	ReasonLengthMismatch:      "length_mismatch",
	ReasonProtocolVersion:     "protocol_version",
	ReasonMessageType:         "message_type",
	ReasonReturnCode:          "return_code",
	ReasonMagicCookieMismatch: "magic_cookie_mismatch",
	ReasonPortMiss:            "port_miss",
	ReasonMagicCookie:         "magic_cookie",
	ReasonMagicCookieAck:      "magic_cookie_ack",
	ReasonPortMatch:           "port_match",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// Kind tells which message family the header belongs to.
type Kind uint8

const (
	KindGeneral Kind = iota
	KindMagicCookie
	KindMagicCookieAck
	KindServiceDiscovery
)

func (k Kind) String() string {
	switch k {
	case KindMagicCookie:
		return "magic_cookie"
	case KindMagicCookieAck:
		return "magic_cookie_ack"
	case KindServiceDiscovery:
		return "service_discovery"
	default:
		return "general"
	}
}

// KindOf maps a message id to its family.
func KindOf(messageID uint32) Kind {
	switch messageID {
	case MessageIDMagicCookie:
		return KindMagicCookie
	case MessageIDMagicCookieAck:
		return KindMagicCookieAck
	case MessageIDServiceDiscovery:
		return KindServiceDiscovery
	default:
		return KindGeneral
	}
}

// Result is the outcome of one classification.
type Result struct {
	Verdict Verdict
	Reason  Reason
	Kind    Kind

	// Header is valid only when HasHeader is set (payload of at least HeaderLen bytes).
	Header    Header
	HasHeader bool
}

// Confirmed reports whether the payload was accepted as SOME/IP.
func (r Result) Confirmed() bool { return r.Verdict == Confirmed }

func (r Result) String() string {
	return r.Verdict.String() + " (" + r.Reason.String() + ")"
}

// Policy holds the destination-port allow-lists of the fallback check.
// A Policy is immutable once built and safe to share.
type Policy struct {
	udp []uint16
	tcp []uint16
}

var defaultPolicy = Policy{
	udp: []uint16{PortDefaultClient, PortDefaultServer, PortDefaultSD},
	tcp: []uint16{PortDefaultClient, PortDefaultServer},
}

// DefaultPolicy returns the documented default ports: UDP 30491, 30501 and
// 30490 (service discovery), TCP 30491 and 30501.
func DefaultPolicy() Policy {
	return defaultPolicy
}

// NewPolicy builds a policy from custom allow-lists. The slices are copied.
func NewPolicy(udp, tcp []uint16) Policy {
	return Policy{
		udp: normalizePorts(udp),
		tcp: normalizePorts(tcp),
	}
}

func normalizePorts(ports []uint16) []uint16 {
	out := slices.Clone(ports)
	slices.Sort(out)
	return slices.Compact(out)
}

// UDPPorts returns a copy of the UDP allow-list.
func (p Policy) UDPPorts() []uint16 { return slices.Clone(p.udp) }

// TCPPorts returns a copy of the TCP allow-list.
func (p Policy) TCPPorts() []uint16 { return slices.Clone(p.tcp) }

// Allows reports whether t matches the allow-list of its transport.
// Transports other than TCP and UDP never match.
func (p Policy) Allows(t Transport) bool {
	switch t.Protocol {
	case ProtocolUDP:
		return slices.Contains(p.udp, t.DstPort)
	case ProtocolTCP:
		return slices.Contains(p.tcp, t.DstPort)
	default:
		return false
	}
}

// Classifier applies the gate pipeline with a fixed Policy.
// It holds no mutable state and may be used from many goroutines.
type Classifier struct {
	policy Policy
}

// NewClassifier returns a classifier bound to policy.
func NewClassifier(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

// Policy returns the classifier's port policy.
func (c *Classifier) Policy() Policy { return c.policy }

var defaultClassifier = NewClassifier(DefaultPolicy())

// Classify classifies payload with the default policy.
func Classify(payload []byte, t Transport) Result {
	return defaultClassifier.Classify(payload, t)
}

// Classify runs the structural gates, the handshake checks and the port
// fallback in that order. It never fails; malformed input is Excluded.
func (c *Classifier) Classify(payload []byte, t Transport) Result {
	var res Result
	if h, err := ParseHeader(payload); err == nil {
		res.Header = h
		res.HasHeader = true
		res.Kind = KindOf(h.MessageID)
	}

	for _, g := range structuralGates {
		if !g.Pass(payload) {
			return res.exclude(g.Reason)
		}
	}

	switch res.Kind {
	case KindMagicCookie:
		if isHandshake(res.Header) {
			return res.confirm(ReasonMagicCookie)
		}
		return res.exclude(ReasonMagicCookieMismatch)
	case KindMagicCookieAck:
		if isHandshake(res.Header) {
			return res.confirm(ReasonMagicCookieAck)
		}
		return res.exclude(ReasonMagicCookieMismatch)
	case KindServiceDiscovery:
		// recognized only; subject to the same port check as general traffic
	}

	if c.policy.Allows(t) {
		return res.confirm(ReasonPortMatch)
	}
	return res.exclude(ReasonPortMiss)
}

func (r Result) confirm(reason Reason) Result {
	r.Verdict = Confirmed
	r.Reason = reason
	return r
}

func (r Result) exclude(reason Reason) Result {
	r.Verdict = Excluded
	r.Reason = reason
	return r
}
