package core

import (
	"strconv"
	"time"
)

// Record is the serialized form of an OutputPacket shared by reporters.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source,omitempty"`
	SrcIP       string    `json:"src_ip"`
	DstIP       string    `json:"dst_ip"`
	SrcPort     uint16    `json:"src_port"`
	DstPort     uint16    `json:"dst_port"`
	Transport   string    `json:"transport"`
	PayloadType string    `json:"payload_type"`
	PayloadLen  int       `json:"payload_len"`
	Verdict     string    `json:"verdict,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Labels      Labels    `json:"labels,omitempty"`
}

// NewRecord flattens pkt. Verdict and Reason are lifted out of the labels.
func NewRecord(pkt *OutputPacket) Record {
	return Record{
		Timestamp:   pkt.Timestamp,
		Source:      pkt.Source,
		SrcIP:       pkt.SrcIP.String(),
		DstIP:       pkt.DstIP.String(),
		SrcPort:     pkt.SrcPort,
		DstPort:     pkt.DstPort,
		Transport:   TransportName(pkt.Protocol),
		PayloadType: pkt.PayloadType,
		PayloadLen:  pkt.PayloadLen,
		Verdict:     pkt.Labels[LabelSomeIPVerdict],
		Reason:      pkt.Labels[LabelSomeIPReason],
		Labels:      pkt.Labels,
	}
}

// TransportName returns "tcp", "udp" or the protocol number.
func TransportName(proto uint8) string {
	switch proto {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	default:
		return "ip/" + strconv.Itoa(int(proto))
	}
}

