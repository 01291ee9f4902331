package someip

import "encoding/binary"

// Gate is one structural check of the classification pipeline.
//
// Each gate is total: it reports false for payloads it cannot read instead of
// panicking, so gates can be exercised in isolation and in any order.
type Gate struct {
	Name   string
	Reason Reason
	pass   func(payload []byte) bool
}

// Pass reports whether payload satisfies the gate.
func (g Gate) Pass(payload []byte) bool {
	return g.pass(payload)
}

var (
	// GateLengthFloor requires the full mandatory header.
	GateLengthFloor = Gate{
		Name:   "length_floor",
		Reason: ReasonTooShort,
		pass: func(payload []byte) bool {
			return len(payload) >= HeaderLen
		},
	}

	// GateLengthField requires the length field to cover exactly the rest of the payload.
	GateLengthField = Gate{
		Name:   "length_field",
		Reason: ReasonLengthMismatch,
		pass: func(payload []byte) bool {
			if len(payload) < HeaderLen {
				return false
			}
			length := binary.BigEndian.Uint32(payload[offLength:])
			return uint64(len(payload)) == uint64(length)+lengthFieldOffset
		},
	}

	// GateProtocolVersion requires protocol version 1.
	GateProtocolVersion = Gate{
		Name:   "protocol_version",
		Reason: ReasonProtocolVersion,
		pass: func(payload []byte) bool {
			return len(payload) >= HeaderLen && payload[offProtocolVersion] == ProtocolVersion
		},
	}

	// GateMessageType requires one of the ten legal message types.
	GateMessageType = Gate{
		Name:   "message_type",
		Reason: ReasonMessageType,
		pass: func(payload []byte) bool {
			return len(payload) >= HeaderLen && MessageType(payload[offMessageType]).Valid()
		},
	}

	// GateReturnCode rejects the reserved return code range.
	GateReturnCode = Gate{
		Name:   "return_code",
		Reason: ReasonReturnCode,
		pass: func(payload []byte) bool {
			return len(payload) >= HeaderLen && ReturnCode(payload[offReturnCode]).Valid()
		},
	}
)

var structuralGates = [...]Gate{
	GateLengthFloor,
	GateLengthField,
	GateProtocolVersion,
	GateMessageType,
	GateReturnCode,
}

// StructuralGates returns the header gates in evaluation order.
// The first failing gate decides the exclusion reason.
func StructuralGates() []Gate {
	gates := structuralGates
	return gates[:]
}

// isHandshake reports whether h carries the fixed Magic Cookie sub-fields.
// The message id is checked by the caller.
func isHandshake(h Header) bool {
	return h.Length == MagicCookieLength &&
		h.RequestID == MagicCookieRequestID &&
		h.InterfaceVersion == MagicCookieInterfaceVersion &&
		h.MessageType == MessageTypeRequestNoReturn &&
		h.ReturnCode == ReturnCodeOK
}
