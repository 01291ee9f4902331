package decoder

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/testutil"
)

var (
	client = testutil.Endpoint{IP: "192.168.1.1", Port: 40000}
	server = testutil.Endpoint{IP: "192.168.1.2", Port: 30501}
)

func rawOf(data []byte) core.RawPacket {
	return core.RawPacket{
		Data:       data,
		Timestamp:  time.Now(),
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
	}
}

func TestDecodeUDP(t *testing.T) {
	payload := testutil.MagicCookie()
	decoded, err := New().Decode(rawOf(testutil.UDPFrame(client, server, payload)))
	require.NoError(t, err)

	assert.Equal(t, uint16(0x0800), decoded.Ethernet.EtherType)
	assert.Equal(t, [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, decoded.Ethernet.SrcMAC)
	assert.Equal(t, uint8(4), decoded.IP.Version)
	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), decoded.IP.SrcIP)
	assert.Equal(t, netip.MustParseAddr("192.168.1.2"), decoded.IP.DstIP)
	assert.Equal(t, core.ProtocolUDP, decoded.IP.Protocol)
	assert.Equal(t, core.ProtocolUDP, decoded.Transport.Protocol)
	assert.Equal(t, uint16(40000), decoded.Transport.SrcPort)
	assert.Equal(t, uint16(30501), decoded.Transport.DstPort)
	assert.Equal(t, payload, decoded.Payload)
	assert.True(t, decoded.HasTransport())
}

func TestDecodeTCP(t *testing.T) {
	payload := testutil.Request(0x1234, 0x0001, []byte{1, 2, 3, 4})
	decoded, err := New().Decode(rawOf(testutil.TCPFrame(client, server, payload)))
	require.NoError(t, err)

	assert.Equal(t, core.ProtocolTCP, decoded.Transport.Protocol)
	assert.Equal(t, uint32(1000), decoded.Transport.SeqNum)
	assert.Equal(t, uint32(2000), decoded.Transport.AckNum)
	assert.Equal(t, uint8(0x18), decoded.Transport.TCPFlags) // PSH|ACK
	assert.Equal(t, payload, decoded.Payload)
}

func TestDecodeIPv6(t *testing.T) {
	src := testutil.Endpoint{IP: "2001:db8::1", Port: 40000}
	dst := testutil.Endpoint{IP: "2001:db8::2", Port: 30490}
	decoded, err := New().Decode(rawOf(testutil.UDPFrame(src, dst, testutil.MagicCookie())))
	require.NoError(t, err)

	assert.Equal(t, uint8(6), decoded.IP.Version)
	assert.Equal(t, netip.MustParseAddr("2001:db8::2"), decoded.IP.DstIP)
	assert.Equal(t, uint16(30490), decoded.Transport.DstPort)
	assert.Len(t, decoded.Payload, 16)
}

func TestDecodeVLAN(t *testing.T) {
	decoded, err := New().Decode(rawOf(testutil.UDPFrame(client, server, testutil.MagicCookie(), 10, 20)))
	require.NoError(t, err)

	assert.Equal(t, []uint16{10, 20}, decoded.Ethernet.VLANs)
	assert.Equal(t, uint16(0x0800), decoded.Ethernet.EtherType)
	assert.Equal(t, uint16(30501), decoded.Transport.DstPort)
}

func TestDecodeVLAN_StackedTagsKeepOrder(t *testing.T) {
	d := New()
	qinq, err := d.Decode(rawOf(testutil.UDPFrame(client, server, testutil.MagicCookie(), 100, 200, 300)))
	require.NoError(t, err)
	single, err := d.Decode(rawOf(testutil.UDPFrame(client, server, testutil.MagicCookie(), 7)))
	require.NoError(t, err)

	assert.Equal(t, []uint16{100, 200, 300}, qinq.Ethernet.VLANs, "outer tag first")
	assert.Equal(t, []uint16{7}, single.Ethernet.VLANs)
	assert.Equal(t, uint16(0x0800), qinq.Ethernet.EtherType)
	assert.Len(t, qinq.Payload, 16)
}

func TestDecodeRawIP(t *testing.T) {
	frame := testutil.UDPFrame(client, server, testutil.MagicCookie())
	raw := rawOf(frame[14:]) // strip Ethernet
	raw.LinkType = core.LinkTypeRaw

	decoded, err := New().Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(30501), decoded.Transport.DstPort)
	assert.Len(t, decoded.Payload, 16)
}

func TestDecodeReuse(t *testing.T) {
	d := New()
	first, err := d.Decode(rawOf(testutil.UDPFrame(client, server, testutil.MagicCookie(), 10)))
	require.NoError(t, err)
	second, err := d.Decode(rawOf(testutil.TCPFrame(client, server, []byte("x"))))
	require.NoError(t, err)

	// state from the first frame must not leak into the second
	assert.Equal(t, []uint16{10}, first.Ethernet.VLANs)
	assert.Nil(t, second.Ethernet.VLANs)
	assert.Equal(t, core.ProtocolTCP, second.Transport.Protocol)
	assert.Equal(t, []byte("x"), second.Payload)
}

func TestDecodeNonIP(t *testing.T) {
	// ARP frame: Ethernet header only as far as the decoder is concerned
	arp := make([]byte, 42)
	arp[12], arp[13] = 0x08, 0x06
	decoded, err := New().Decode(rawOf(arp))
	require.NoError(t, err)
	assert.False(t, decoded.HasTransport())
	assert.Equal(t, uint16(0x0806), decoded.Ethernet.EtherType)
}

func TestDecodeErrors(t *testing.T) {
	_, err := New().Decode(rawOf([]byte{0x00, 0x11}))
	assert.True(t, errors.Is(err, core.ErrPacketTooShort), "got %v", err)

	raw := rawOf([]byte{0x45})
	raw.LinkType = 9999
	_, err = New().Decode(raw)
	assert.ErrorIs(t, err, core.ErrUnsupportedLinkType)

	raw = rawOf([]byte{0x20, 0x00})
	raw.LinkType = core.LinkTypeRaw
	_, err = New().Decode(raw)
	assert.ErrorIs(t, err, core.ErrUnsupportedProto)
}
