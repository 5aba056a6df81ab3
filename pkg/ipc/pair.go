package ipc

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned when writing to a closed channel end.
var ErrClosed = errors.New("ipc: closed")

// PairEnd is one end of an in-process channel created by NewPair.
type PairEnd struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	peer *PairEnd
	once sync.Once
}

// NewPair creates two connected in-process channel ends. Each end buffers
// up to depth packets before WritePacket blocks.
func NewPair(depth int) (*PairEnd, *PairEnd) {
	ab, ba := make(chan []byte, depth), make(chan []byte, depth)
	a := &PairEnd{in: ba, out: ab, done: make(chan struct{})}
	b := &PairEnd{in: ab, out: ba, done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// ReadPacket implements PacketReader.
func (e *PairEnd) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-e.in:
		return pkt, nil
	case <-e.done:
		return nil, io.EOF
	case <-e.peer.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter. The packet is copied.
func (e *PairEnd) WritePacket(pkt []byte) error {
	pkt = append([]byte(nil), pkt...)
	select {
	case <-e.done:
		return ErrClosed
	case <-e.peer.done:
		return ErrClosed
	default:
	}
	select {
	case e.out <- pkt:
		return nil
	case <-e.done:
		return ErrClosed
	case <-e.peer.done:
		return ErrClosed
	}
}

// Close implements io.Closer. Both ends observe EOF afterwards.
func (e *PairEnd) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}
