// Package core defines core types.
package core

// Labels represents key-value metadata attached by parsers.
type Labels map[string]string

// Label naming constants following {protocol}.{field} convention.
const (
	LabelSomeIPVerdict          = "someip.verdict"
	LabelSomeIPReason           = "someip.reason"
	LabelSomeIPKind             = "someip.kind"
	LabelSomeIPMessageID        = "someip.message_id"        // hex, 0xXXXXXXXX
	LabelSomeIPServiceID        = "someip.service_id"        // hex, 0xXXXX
	LabelSomeIPMethodID         = "someip.method_id"         // hex, 0xXXXX
	LabelSomeIPRequestID        = "someip.request_id"        // hex, 0xXXXXXXXX
	LabelSomeIPLength           = "someip.length"            // decimal
	LabelSomeIPInterfaceVersion = "someip.interface_version" // decimal
	LabelSomeIPMessageType      = "someip.message_type"      // symbolic name, e.g. "REQUEST"
	LabelSomeIPReturnCode       = "someip.return_code"       // symbolic name, e.g. "E_OK"
)
