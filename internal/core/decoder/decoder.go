// Package decoder implements L2-L4 protocol stack decoding.
package decoder

import (
	"fmt"
	"net"
	"net/netip"
	"slices"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/someip/internal/core"
)

// Decoder decodes raw packets into structured format.
type Decoder interface {
	Decode(raw core.RawPacket) (core.DecodedPacket, error)
}

// LayerDecoder decodes Ethernet, Linux SLL and raw IP frames with gopacket's
// DecodingLayerParser. Layer structs are reused between calls, so a
// LayerDecoder must not be shared between goroutines; create one per worker.
type LayerDecoder struct {
	eth     layers.Ethernet
	sll     layers.LinuxSLL
	vlan    vlanTags
	ip4     layers.IPv4
	ip6     layers.IPv6
	tcp     layers.TCP
	udp     layers.UDP
	payload gopacket.Payload

	ethParser *gopacket.DecodingLayerParser
	sllParser *gopacket.DecodingLayerParser
	ip4Parser *gopacket.DecodingLayerParser
	ip6Parser *gopacket.DecodingLayerParser

	decoded []gopacket.LayerType
}

// New creates a LayerDecoder.
func New() *LayerDecoder {
	d := &LayerDecoder{decoded: make([]gopacket.LayerType, 0, 8)}
	stack := []gopacket.DecodingLayer{&d.eth, &d.sll, &d.vlan, &d.ip4, &d.ip6, &d.tcp, &d.udp, &d.payload}

	d.ethParser = newParser(layers.LayerTypeEthernet, stack)
	d.sllParser = newParser(layers.LayerTypeLinuxSLL, stack)
	d.ip4Parser = newParser(layers.LayerTypeIPv4, stack)
	d.ip6Parser = newParser(layers.LayerTypeIPv6, stack)
	return d
}

func newParser(first gopacket.LayerType, stack []gopacket.DecodingLayer) *gopacket.DecodingLayerParser {
	p := gopacket.NewDecodingLayerParser(first, stack...)
	// ICMP, ARP, IP fragments etc. stop decoding without an error
	p.IgnoreUnsupported = true
	return p
}

// Decode decodes raw into a DecodedPacket. Packets without TCP/UDP decode
// successfully with a zero Transport; callers check HasTransport.
func (d *LayerDecoder) Decode(raw core.RawPacket) (core.DecodedPacket, error) {
	parser, err := d.parserFor(raw)
	if err != nil {
		return core.DecodedPacket{}, err
	}

	d.vlan.ids = d.vlan.ids[:0]
	if err := parser.DecodeLayers(raw.Data, &d.decoded); err != nil {
		return core.DecodedPacket{}, fmt.Errorf("%w: %v", core.ErrPacketTooShort, err)
	}

	pkt := core.DecodedPacket{
		Timestamp:  raw.Timestamp,
		CaptureLen: raw.CaptureLen,
		OrigLen:    raw.OrigLen,
	}

	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeEthernet:
			copy(pkt.Ethernet.SrcMAC[:], d.eth.SrcMAC)
			copy(pkt.Ethernet.DstMAC[:], d.eth.DstMAC)
			pkt.Ethernet.EtherType = uint16(d.eth.EthernetType)
		case layers.LayerTypeLinuxSLL:
			pkt.Ethernet.EtherType = uint16(d.sll.EthernetType)
		case layers.LayerTypeDot1Q:
			// the struct holds the innermost tag
			pkt.Ethernet.EtherType = uint16(d.vlan.Type)
		case layers.LayerTypeIPv4:
			pkt.IP = core.IPHeader{
				Version:  4,
				SrcIP:    toAddr(d.ip4.SrcIP),
				DstIP:    toAddr(d.ip4.DstIP),
				Protocol: uint8(d.ip4.Protocol),
				TTL:      d.ip4.TTL,
				TotalLen: d.ip4.Length,
			}
		case layers.LayerTypeIPv6:
			pkt.IP = core.IPHeader{
				Version:  6,
				SrcIP:    toAddr(d.ip6.SrcIP),
				DstIP:    toAddr(d.ip6.DstIP),
				Protocol: uint8(d.ip6.NextHeader),
				TTL:      d.ip6.HopLimit,
				TotalLen: 40 + d.ip6.Length,
			}
		case layers.LayerTypeUDP:
			pkt.Transport = core.TransportHeader{
				SrcPort:  uint16(d.udp.SrcPort),
				DstPort:  uint16(d.udp.DstPort),
				Protocol: core.ProtocolUDP,
			}
			pkt.Payload = d.udp.Payload
		case layers.LayerTypeTCP:
			pkt.Transport = core.TransportHeader{
				SrcPort:  uint16(d.tcp.SrcPort),
				DstPort:  uint16(d.tcp.DstPort),
				Protocol: core.ProtocolTCP,
				TCPFlags: tcpFlags(&d.tcp),
				SeqNum:   d.tcp.Seq,
				AckNum:   d.tcp.Ack,
			}
			pkt.Payload = d.tcp.Payload
		}
	}

	if len(d.vlan.ids) > 0 {
		pkt.Ethernet.VLANs = slices.Clone(d.vlan.ids)
	}
	return pkt, nil
}

// vlanTags decodes 802.1Q tags like layers.Dot1Q and records every tag's
// VLAN ID in order, outermost first. The parser reuses one struct for
// stacked tags, so the IDs must be taken as each tag is decoded.
type vlanTags struct {
	layers.Dot1Q
	ids []uint16
}

func (v *vlanTags) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if err := v.Dot1Q.DecodeFromBytes(data, df); err != nil {
		return err
	}
	v.ids = append(v.ids, v.VLANIdentifier)
	return nil
}

func (d *LayerDecoder) parserFor(raw core.RawPacket) (*gopacket.DecodingLayerParser, error) {
	switch raw.LinkType {
	case 0, core.LinkTypeEthernet:
		return d.ethParser, nil
	case core.LinkTypeLinuxSLL:
		return d.sllParser, nil
	case core.LinkTypeRaw, core.LinkTypeIPv4, core.LinkTypeIPv6:
		if len(raw.Data) < 1 {
			return nil, core.ErrPacketTooShort
		}
		// Raw IP: pick the parser from the version nibble
		switch raw.Data[0] >> 4 {
		case 4:
			return d.ip4Parser, nil
		case 6:
			return d.ip6Parser, nil
		default:
			return nil, core.ErrUnsupportedProto
		}
	default:
		return nil, fmt.Errorf("%w: %d", core.ErrUnsupportedLinkType, raw.LinkType)
	}
}

func toAddr(ip net.IP) netip.Addr {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}

// tcpFlags packs the six classic TCP flags as they appear in byte 13 of the header.
func tcpFlags(tcp *layers.TCP) uint8 {
	var f uint8
	if tcp.FIN {
		f |= 0x01
	}
	if tcp.SYN {
		f |= 0x02
	}
	if tcp.RST {
		f |= 0x04
	}
	if tcp.PSH {
		f |= 0x08
	}
	if tcp.ACK {
		f |= 0x10
	}
	if tcp.URG {
		f |= 0x20
	}
	return f
}
