// Package testutil builds packet fixtures for tests.
package testutil

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/someip/pkg/someip"
)

var (
	srcMAC = net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	dstMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
)

// Endpoint is one side of a flow.
type Endpoint struct {
	IP   string
	Port uint16
}

// MagicCookie returns the 16-byte SOME/IP Magic Cookie.
func MagicCookie() []byte {
	return someip.Header{
		MessageID:        someip.MessageIDMagicCookie,
		Length:           someip.MagicCookieLength,
		RequestID:        someip.MagicCookieRequestID,
		ProtocolVersion:  someip.ProtocolVersion,
		InterfaceVersion: someip.MagicCookieInterfaceVersion,
		MessageType:      someip.MessageTypeRequestNoReturn,
		ReturnCode:       someip.ReturnCodeOK,
	}.AppendBinary(nil)
}

// Request returns a well-formed SOME/IP REQUEST carrying body.
func Request(serviceID, methodID uint16, body []byte) []byte {
	h := someip.Header{
		MessageID:        uint32(serviceID)<<16 | uint32(methodID),
		Length:           uint32(8 + len(body)),
		RequestID:        0x00000001,
		ProtocolVersion:  someip.ProtocolVersion,
		InterfaceVersion: 1,
		MessageType:      someip.MessageTypeRequest,
		ReturnCode:       someip.ReturnCodeOK,
	}
	return append(h.AppendBinary(nil), body...)
}

// UDPFrame builds an Ethernet/IPv4-or-IPv6/UDP frame.
func UDPFrame(src, dst Endpoint, payload []byte, vlans ...uint16) []byte {
	udp := &layers.UDP{SrcPort: layers.UDPPort(src.Port), DstPort: layers.UDPPort(dst.Port)}
	return frame(src.IP, dst.IP, layers.IPProtocolUDP, udp, payload, vlans)
}

// TCPFrame builds an Ethernet/IPv4-or-IPv6/TCP frame with PSH|ACK set.
func TCPFrame(src, dst Endpoint, payload []byte) []byte {
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port),
		DstPort: layers.TCPPort(dst.Port),
		Seq:     1000,
		Ack:     2000,
		PSH:     true,
		ACK:     true,
		Window:  65535,
	}
	return frame(src.IP, dst.IP, layers.IPProtocolTCP, tcp, payload, nil)
}

type transportLayer interface {
	gopacket.SerializableLayer
	SetNetworkLayerForChecksum(gopacket.NetworkLayer) error
}

func frame(srcIP, dstIP string, proto layers.IPProtocol, l4 transportLayer, payload []byte, vlans []uint16) []byte {
	src, dst := net.ParseIP(srcIP), net.ParseIP(dstIP)

	var ip gopacket.SerializableLayer
	etherType := layers.EthernetTypeIPv4
	if src.To4() != nil {
		ip4 := &layers.IPv4{Version: 4, TTL: 64, Protocol: proto, SrcIP: src.To4(), DstIP: dst.To4()}
		_ = l4.SetNetworkLayerForChecksum(ip4)
		ip = ip4
	} else {
		ip6 := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: proto, SrcIP: src, DstIP: dst}
		_ = l4.SetNetworkLayerForChecksum(ip6)
		ip = ip6
		etherType = layers.EthernetTypeIPv6
	}

	stack := []gopacket.SerializableLayer{}
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: etherType}
	if len(vlans) > 0 {
		eth.EthernetType = layers.EthernetTypeDot1Q
	}
	stack = append(stack, eth)
	for i, id := range vlans {
		next := etherType
		if i < len(vlans)-1 {
			next = layers.EthernetTypeDot1Q
		}
		stack = append(stack, &layers.Dot1Q{VLANIdentifier: id, Type: next})
	}
	stack = append(stack, ip, l4, gopacket.Payload(payload))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WritePcap writes frames to a new Ethernet pcap file under t.TempDir and returns its path.
func WritePcap(t testing.TB, frames ...[]byte) string {
	t.Helper()
	path := t.TempDir() + "/capture.pcap"
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcap: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("write pcap header: %v", err)
	}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("write packet %d: %v", i, err)
		}
	}
	return path
}

// WritePcapNg writes frames to a new Ethernet pcapng file under t.TempDir and returns its path.
func WritePcapNg(t testing.TB, frames ...[]byte) string {
	t.Helper()
	path := t.TempDir() + "/capture.pcapng"
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcapng: %v", err)
	}
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatalf("create pcapng writer: %v", err)
	}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("write packet %d: %v", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush pcapng: %v", err)
	}
	return path
}
