package hci

import (
	"encoding/binary"
	"fmt"
)

// PacketType is the 1-byte packet indicator at offset 0 of every frame.
type PacketType byte

// Packet types.
const (
	Command PacketType = 0x01
	ACLData PacketType = 0x02
	SCOData PacketType = 0x03
	Event   PacketType = 0x04
	ISOData PacketType = 0x05
)

// Header sizes following the packet indicator.
const (
	CommandHeaderLen = 3 // opcode(2) + parameter length(1)
	ACLHeaderLen     = 4 // handle(2) + data length(2)
	SCOHeaderLen     = 3 // handle(2) + data length(1)
	EventHeaderLen   = 2 // event code(1) + parameter length(1)
	ISOHeaderLen     = 4 // handle(2) + data length(2, 14 bits)
)

// MaxFrameSize is the default size of the read and write frame buffers.
// It covers the largest payload plus the indicator and header with margin.
const MaxFrameSize = 270

// String implements fmt.Stringer.
func (t PacketType) String() string {
	switch t {
	case Command:
		return "CMD"
	case ACLData:
		return "ACL"
	case SCOData:
		return "SCO"
	case Event:
		return "EVT"
	case ISOData:
		return "ISO"
	}
	return fmt.Sprintf("0x%02x", byte(t))
}

// IsValid indicates the type is a known H4 indicator.
func (t PacketType) IsValid() bool {
	return t >= Command && t <= ISOData
}

// HeaderLen returns the length of the header following the indicator.
func (t PacketType) HeaderLen() int {
	switch t {
	case Command:
		return CommandHeaderLen
	case ACLData:
		return ACLHeaderLen
	case SCOData:
		return SCOHeaderLen
	case Event:
		return EventHeaderLen
	case ISOData:
		return ISOHeaderLen
	}
	return 0
}

// PayloadLen extracts the parameter/data length from a header of this type.
// hdr must be at least HeaderLen bytes.
func (t PacketType) PayloadLen(hdr []byte) int {
	switch t {
	case Command:
		return int(hdr[2])
	case ACLData:
		return int(binary.LittleEndian.Uint16(hdr[2:4]))
	case SCOData:
		return int(hdr[2])
	case Event:
		return int(hdr[1])
	case ISOData:
		return int(binary.LittleEndian.Uint16(hdr[2:4]) & 0x3fff)
	}
	return 0
}

// ACLHeader is the header of an ACL data packet.
type ACLHeader []byte

// Handle returns the 12-bit connection handle.
func (h ACLHeader) Handle() uint16 { return binary.LittleEndian.Uint16(h[0:2]) & 0x0fff }

// Flags returns packet boundary and broadcast flags.
func (h ACLHeader) Flags() byte { return h[1] >> 4 }

// DataLen returns the declared data length.
func (h ACLHeader) DataLen() int { return int(binary.LittleEndian.Uint16(h[2:4])) }

// NewACLHeader encodes an ACL header.
func NewACLHeader(handle uint16, flags byte, dataLen int) ACLHeader {
	h := make(ACLHeader, ACLHeaderLen)
	binary.LittleEndian.PutUint16(h[0:2], handle&0x0fff|uint16(flags&0x0f)<<12)
	binary.LittleEndian.PutUint16(h[2:4], uint16(dataLen))
	return h
}

// Frame is one on-wire frame: packet type followed by the payload.
type Frame []byte

// Type returns the packet indicator.
func (f Frame) Type() PacketType { return PacketType(f[0]) }

// Payload returns everything after the indicator.
func (f Frame) Payload() []byte { return f[1:] }

// NewFrame builds a frame from a type and payload.
func NewFrame(t PacketType, payload []byte) Frame {
	f := make(Frame, len(payload)+1)
	f[0] = byte(t)
	copy(f[1:], payload)
	return f
}
