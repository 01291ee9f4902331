package someip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(magicCookie)
	require.NoError(t, err)

	assert.Equal(t, MessageIDMagicCookie, h.MessageID)
	assert.Equal(t, uint32(8), h.Length)
	assert.Equal(t, MagicCookieRequestID, h.RequestID)
	assert.Equal(t, uint8(1), h.ProtocolVersion)
	assert.Equal(t, uint8(1), h.InterfaceVersion)
	assert.Equal(t, MessageTypeRequestNoReturn, h.MessageType)
	assert.Equal(t, ReturnCodeOK, h.ReturnCode)
	assert.Equal(t, uint16(0xDEAD), h.ClientID())
	assert.Equal(t, uint16(0xBEEF), h.SessionID())
	assert.Equal(t, uint64(16), h.MessageLen())

	assert.Equal(t, magicCookie, h.AppendBinary(nil))
}

func TestParseHeader_Short(t *testing.T) {
	_, err := ParseHeader(magicCookie[:15])
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "REQUEST", MessageTypeRequest.String())
	assert.Equal(t, "ERROR_ACK", MessageTypeErrorAck.String())
	assert.Equal(t, "UNKNOWN(0x03)", MessageType(0x03).String())
	assert.Len(t, messageTypeNames, 10)
}

func TestReturnCode_String(t *testing.T) {
	assert.Equal(t, "E_OK", ReturnCodeOK.String())
	assert.Equal(t, "E_WRONG_MESSAGE_TYPE", ReturnCodeWrongMessageType.String())
	assert.Equal(t, "E_0x20", ReturnCode(0x20).String())
	assert.Equal(t, "RESERVED(0x40)", ReturnCodeLegalThreshold.String())
	assert.True(t, ReturnCode(0x3F).Valid())
	assert.False(t, ReturnCode(0x40).Valid())
}

func TestStructuralGates_Order(t *testing.T) {
	names := make([]string, 0, 5)
	for _, g := range StructuralGates() {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"length_floor", "length_field", "protocol_version", "message_type", "return_code"}, names)

	// callers cannot reorder the pipeline through the returned slice
	gates := StructuralGates()
	gates[0] = GateReturnCode
	assert.Equal(t, "length_floor", StructuralGates()[0].Name)
}

func TestGates_Independent(t *testing.T) {
	tests := []struct {
		gate    Gate
		pass    []byte
		fail    []byte
		comment string
	}{
		{GateLengthFloor, generalRequest, generalRequest[:15], "15 bytes"},
		{GateLengthField, generalRequest, append(append([]byte(nil), generalRequest...), 0), "trailing byte"},
		{GateProtocolVersion, generalRequest, mutate(generalRequest, offProtocolVersion, 2), "version 2"},
		{GateMessageType, generalRequest, mutate(generalRequest, offMessageType, 0x20), "tp request"},
		{GateReturnCode, generalRequest, mutate(generalRequest, offReturnCode, 0x40), "reserved code"},
	}
	for _, tt := range tests {
		t.Run(tt.gate.Name, func(t *testing.T) {
			assert.True(t, tt.gate.Pass(tt.pass))
			assert.False(t, tt.gate.Pass(tt.fail), tt.comment)
			// short input is a failure, never a panic
			assert.False(t, tt.gate.Pass([]byte{0x01}))
		})
	}
}
