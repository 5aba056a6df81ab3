// Package ipc provides the message channel between the two cores.
package ipc

import "context"

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// PacketHandler is called for every received packet.
type PacketHandler interface {
	HandlePacket(context.Context, []byte) error
}

// HandlePacketFunc is func form of PacketHandler.
type HandlePacketFunc func(context.Context, []byte) error

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt []byte) error {
	return f(ctx, pkt)
}
