// Package core defines sentinel errors.
package core

import "errors"

var (
	// Pipeline errors
	ErrPipelineStopped = errors.New("someip: pipeline stopped")

	// Packet decoding errors
	ErrPacketTooShort      = errors.New("someip: packet too short")
	ErrUnsupportedProto    = errors.New("someip: unsupported protocol")
	ErrUnsupportedLinkType = errors.New("someip: unsupported link type")

	// Source errors
	ErrSourceNotStarted = errors.New("someip: source not started")

	// Plugin errors
	ErrPluginNotFound = errors.New("someip: plugin not found")

	// Configuration errors
	ErrConfigInvalid = errors.New("someip: invalid configuration")
)
