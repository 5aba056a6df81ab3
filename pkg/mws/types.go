package mws

import (
	"fmt"
	"strings"
)

// ProtocolID identifies a radio-sharing protocol stack.
type ProtocolID uint8

// Known protocols.
const (
	BLE ProtocolID = iota
	IEEE802154
	ANT
	GenFSK

	// NumProtocols is the number of known protocols.
	NumProtocols = 4
)

var protocolNames = [NumProtocols]string{"BLE", "802.15.4", "ANT", "GenFSK"}

// Valid tells whether p is a known protocol.
func (p ProtocolID) Valid() bool {
	return p < NumProtocols
}

// String implements fmt.Stringer.
func (p ProtocolID) String() string {
	if p.Valid() {
		return protocolNames[p]
	}
	return fmt.Sprintf("Protocol(%d)", uint8(p))
}

// ParseProtocol parses a protocol name, case insensitive.
func ParseProtocol(s string) (ProtocolID, error) {
	switch strings.ToLower(s) {
	case "ble":
		return BLE, nil
	case "802.15.4", "15.4", "ieee802154", "zigbee", "thread":
		return IEEE802154, nil
	case "ant":
		return ANT, nil
	case "genfsk", "fsk":
		return GenFSK, nil
	}
	return 0, fmt.Errorf("%w: unknown protocol %q", ErrInvalidParameter, s)
}

// Priority orders protocols competing for the radio; lower is more important.
type Priority uint8

// Priorities maps each protocol to its priority.
type Priorities [NumProtocols]Priority

// DefaultPriorities ranks BLE highest and GenFSK lowest.
var DefaultPriorities = Priorities{0, 1, 2, 3}

// Of returns the priority of p, or the lowest priority for unknown protocols.
func (ps Priorities) Of(p ProtocolID) Priority {
	if !p.Valid() {
		return ^Priority(0)
	}
	return ps[p]
}

// Direction tells whether a message is sent or received.
type Direction int

// Directions.
const (
	Sent Direction = iota
	Received
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Received {
		return "rx"
	}
	return "tx"
}
