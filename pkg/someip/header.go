package someip

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is the size of the mandatory SOME/IP header.
const HeaderLen = 16

// lengthFieldOffset is where the length field's coverage starts: length counts
// every byte from request_id (offset 8) to the end of the message.
const lengthFieldOffset = 8

// Field offsets, network byte order.
const (
	offMessageID        = 0
	offLength           = 4
	offRequestID        = 8
	offProtocolVersion  = 12
	offInterfaceVersion = 13
	offMessageType      = 14
	offReturnCode       = 15
)

// Reserved message ids.
const (
	MessageIDMagicCookie      uint32 = 0xFFFF0000
	MessageIDMagicCookieAck   uint32 = 0xFFFF8000
	MessageIDServiceDiscovery uint32 = 0xFFFF8100
)

// Magic Cookie constants shared by the cookie and its ACK.
const (
	MagicCookieRequestID        uint32 = 0xDEADBEEF
	MagicCookieLength           uint32 = 0x08
	MagicCookieInterfaceVersion uint8  = 0x01
)

// ProtocolVersion is the only protocol version accepted on the wire.
const ProtocolVersion uint8 = 0x01

// Default ports. They are documented defaults, not IANA assignments.
const (
	PortDefaultClient uint16 = 30491
	PortDefaultServer uint16 = 30501
	PortDefaultSD     uint16 = 30490
)

// ErrShortHeader is returned by ParseHeader when fewer than HeaderLen bytes are available.
var ErrShortHeader = errors.New("someip: mandatory header not present")

// MessageType is the SOME/IP message type byte.
type MessageType uint8

const (
	MessageTypeRequest            MessageType = 0x00
	MessageTypeRequestNoReturn    MessageType = 0x01
	MessageTypeNotification       MessageType = 0x02
	MessageTypeRequestAck         MessageType = 0x40
	MessageTypeRequestNoReturnAck MessageType = 0x41
	MessageTypeNotificationAck    MessageType = 0x42
	MessageTypeResponse           MessageType = 0x80
	MessageTypeError              MessageType = 0x81
	MessageTypeResponseAck        MessageType = 0xC0
	MessageTypeErrorAck           MessageType = 0xC1
)

var messageTypeNames = map[MessageType]string{
	MessageTypeRequest:            "REQUEST",
	MessageTypeRequestNoReturn:    "REQUEST_NO_RETURN",
	MessageTypeNotification:       "NOTIFICATION",
	MessageTypeRequestAck:         "REQUEST_ACK",
	MessageTypeRequestNoReturnAck: "REQUEST_NO_RETURN_ACK",
	MessageTypeNotificationAck:    "NOTIFICATION_ACK",
	MessageTypeResponse:           "RESPONSE",
	MessageTypeError:              "ERROR",
	MessageTypeResponseAck:        "RESPONSE_ACK",
	MessageTypeErrorAck:           "ERROR_ACK",
}

// Valid reports whether t is one of the ten legal message types.
func (t MessageType) Valid() bool {
	_, ok := messageTypeNames[t]
	return ok
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
}

// ReturnCode is the SOME/IP return code byte.
type ReturnCode uint8

const (
	ReturnCodeOK                    ReturnCode = 0x00
	ReturnCodeNotOK                 ReturnCode = 0x01
	ReturnCodeUnknownService        ReturnCode = 0x02
	ReturnCodeUnknownMethod         ReturnCode = 0x03
	ReturnCodeNotReady              ReturnCode = 0x04
	ReturnCodeNotReachable          ReturnCode = 0x05
	ReturnCodeTimeout               ReturnCode = 0x06
	ReturnCodeWrongProtocolVersion  ReturnCode = 0x07
	ReturnCodeWrongInterfaceVersion ReturnCode = 0x08
	ReturnCodeMalformedMessage      ReturnCode = 0x09
	ReturnCodeWrongMessageType      ReturnCode = 0x0A

	// ReturnCodeLegalThreshold: codes from here upwards are reserved.
	ReturnCodeLegalThreshold ReturnCode = 0x40
)

var returnCodeNames = map[ReturnCode]string{
	ReturnCodeOK:                    "E_OK",
	ReturnCodeNotOK:                 "E_NOT_OK",
	ReturnCodeUnknownService:        "E_UNKNOWN_SERVICE",
	ReturnCodeUnknownMethod:         "E_UNKNOWN_METHOD",
	ReturnCodeNotReady:              "E_NOT_READY",
	ReturnCodeNotReachable:          "E_NOT_REACHABLE",
	ReturnCodeTimeout:               "E_TIMEOUT",
	ReturnCodeWrongProtocolVersion:  "E_WRONG_PROTOCOL_VERSION",
	ReturnCodeWrongInterfaceVersion: "E_WRONG_INTERFACE_VERSION",
	ReturnCodeMalformedMessage:      "E_MALFORMED_MESSAGE",
	ReturnCodeWrongMessageType:      "E_WRONG_MESSAGE_TYPE",
}

// Valid reports whether c is below the reserved range.
func (c ReturnCode) Valid() bool {
	return c < ReturnCodeLegalThreshold
}

func (c ReturnCode) String() string {
	if name, ok := returnCodeNames[c]; ok {
		return name
	}
	if c.Valid() {
		// 0x0b..0x3f are legal but service specific
		return fmt.Sprintf("E_0x%02X", uint8(c))
	}
	return fmt.Sprintf("RESERVED(0x%02X)", uint8(c))
}

// Header is the 16-byte mandatory SOME/IP header.
type Header struct {
	MessageID        uint32
	Length           uint32
	RequestID        uint32
	ProtocolVersion  uint8
	InterfaceVersion uint8
	MessageType      MessageType
	ReturnCode       ReturnCode
}

// ParseHeader reads the mandatory header from the start of b.
// It does not validate any field.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	return Header{
		MessageID:        binary.BigEndian.Uint32(b[offMessageID:]),
		Length:           binary.BigEndian.Uint32(b[offLength:]),
		RequestID:        binary.BigEndian.Uint32(b[offRequestID:]),
		ProtocolVersion:  b[offProtocolVersion],
		InterfaceVersion: b[offInterfaceVersion],
		MessageType:      MessageType(b[offMessageType]),
		ReturnCode:       ReturnCode(b[offReturnCode]),
	}, nil
}

// AppendBinary appends the wire form of h to b.
func (h Header) AppendBinary(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, h.MessageID)
	b = binary.BigEndian.AppendUint32(b, h.Length)
	b = binary.BigEndian.AppendUint32(b, h.RequestID)
	return append(b, h.ProtocolVersion, h.InterfaceVersion, uint8(h.MessageType), uint8(h.ReturnCode))
}

// ServiceID is the upper half of the message id.
func (h Header) ServiceID() uint16 { return uint16(h.MessageID >> 16) }

// MethodID is the lower half of the message id.
func (h Header) MethodID() uint16 { return uint16(h.MessageID) }

// ClientID is the upper half of the request id.
func (h Header) ClientID() uint16 { return uint16(h.RequestID >> 16) }

// SessionID is the lower half of the request id.
func (h Header) SessionID() uint16 { return uint16(h.RequestID) }

// MessageLen is the total message size implied by the length field.
func (h Header) MessageLen() uint64 {
	return uint64(h.Length) + lengthFieldOffset
}
