package hci

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// ReceiveFunc is registered with a Transport to receive packets.
// data excludes the packet indicator.
type ReceiveFunc func(t PacketType, data []byte)

// Transport carries frames to the peer.
type Transport interface {
	// SendFrame sends one complete frame. frame is only valid during the call.
	SendFrame(frame []byte) error
	// SetReceiver registers the receive sink. nil unregisters it.
	SetReceiver(ReceiveFunc) error
}

// Allocator provides frame buffers.
type Allocator interface {
	// Alloc returns a buffer of size bytes, or nil if exhausted.
	Alloc(size int) []byte
	// Free returns a buffer obtained by Alloc.
	Free([]byte)
}

type heapAllocator struct{}

func (heapAllocator) Alloc(size int) []byte { return make([]byte, size) }
func (heapAllocator) Free([]byte)           {}

// PacketHandler is called when a packet is received.
// payload points into the read buffer and is only valid during the call.
// The handler runs in the transport's receive context and must not block.
type PacketHandler interface {
	HandlePacket(t PacketType, payload []byte)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(PacketType, []byte)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(t PacketType, payload []byte) {
	f(t, payload)
}

// Direction tells whether a frame is sent or received.
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

// Tap observes frames passing through a Framer.
// A sent frame is tapped only after the transport accepted it.
// frame is only valid during the call.
type Tap interface {
	TapFrame(dir Direction, frame Frame)
}

// StreamID identifies the sender of ACL fragments.
type StreamID uint32

// DefaultStream is used by Send.
const DefaultStream StreamID = 0

// ReassemblyState describes the in-flight ACL frame.
// Lengths include the packet indicator.
type ReassemblyState struct {
	Active        bool
	Stream        StreamID
	TotalLength   int
	CurrentLength int
}

// FramerStats counts framer activity.
type FramerStats struct {
	FramesSent     uint64
	FragmentsSent  uint64
	SendErrors     uint64
	FramesReceived uint64
	FramesDropped  uint64
}

// Option configures a Framer.
type Option func(*Framer)

// WithAllocator sets the buffer allocator.
func WithAllocator(a Allocator) Option {
	return func(f *Framer) { f.alloc = a }
}

// WithTap installs a frame observer.
func WithTap(t Tap) Option {
	return func(f *Framer) { f.tap = t }
}

// WithMaxFrameSize overrides MaxFrameSize.
func WithMaxFrameSize(size int) Option {
	return func(f *Framer) { f.maxFrame = size }
}

// Framer serializes packets into frames and dispatches received frames.
type Framer struct {
	transport Transport
	alloc     Allocator
	tap       Tap
	maxFrame  int

	// serializes Init and Deinit
	stateLock sync.Mutex

	// send side
	lock        sync.Mutex
	initialized bool
	writeBuf    []byte
	reasm       ReassemblyState

	// receive side
	recvLock sync.Mutex
	readBuf  []byte
	handler  PacketHandler

	framesSent, fragmentsSent, sendErrors atomic.Uint64
	framesReceived, framesDropped         atomic.Uint64
}

// NewFramer creates a Framer on top of a Transport.
func NewFramer(t Transport, opts ...Option) *Framer {
	f := &Framer{
		transport: t,
		alloc:     heapAllocator{},
		maxFrame:  MaxFrameSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Init allocates the frame buffers and registers the receive sink.
func (f *Framer) Init(h PacketHandler) error {
	f.stateLock.Lock()
	defer f.stateLock.Unlock()
	if f.isInitialized() {
		return ErrAlreadyInitialized
	}
	readBuf := f.alloc.Alloc(f.maxFrame)
	if readBuf == nil {
		return ErrOutOfMemory
	}
	writeBuf := f.alloc.Alloc(f.maxFrame)
	if writeBuf == nil {
		f.alloc.Free(readBuf)
		return ErrOutOfMemory
	}

	f.recvLock.Lock()
	f.readBuf, f.handler = readBuf, h
	f.recvLock.Unlock()

	if err := f.transport.SetReceiver(f.receive); err != nil {
		f.recvLock.Lock()
		f.readBuf, f.handler = nil, nil
		f.recvLock.Unlock()
		f.alloc.Free(readBuf)
		f.alloc.Free(writeBuf)
		return fmt.Errorf("%w: %v", ErrOS, err)
	}

	f.lock.Lock()
	f.writeBuf = writeBuf
	f.reasm = ReassemblyState{}
	f.initialized = true
	f.lock.Unlock()
	return nil
}

// Deinit unregisters the receive sink and releases the buffers.
// Any incomplete ACL frame is discarded. Deinit waits for an in-flight
// handler to return; the handler may still call Send, which fails with
// ErrNotInitialized once Deinit has started.
func (f *Framer) Deinit() error {
	f.stateLock.Lock()
	defer f.stateLock.Unlock()

	f.lock.Lock()
	if !f.initialized {
		f.lock.Unlock()
		return ErrNotInitialized
	}
	if f.reasm.Active {
		glog.Warningf("hci: discard incomplete ACL frame %d/%d", f.reasm.CurrentLength, f.reasm.TotalLength)
	}
	writeBuf := f.writeBuf
	f.writeBuf = nil
	f.reasm = ReassemblyState{}
	f.initialized = false
	f.lock.Unlock()

	// f.lock and recvLock are never held together.
	if err := f.transport.SetReceiver(nil); err != nil {
		glog.Warningf("hci: unregister receiver: %v", err)
	}
	f.recvLock.Lock()
	readBuf := f.readBuf
	f.readBuf, f.handler = nil, nil
	f.recvLock.Unlock()

	f.alloc.Free(readBuf)
	f.alloc.Free(writeBuf)
	return nil
}

func (f *Framer) isInitialized() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.initialized
}

// Send sends a packet on the default stream.
func (f *Framer) Send(t PacketType, payload []byte) error {
	return f.SendStream(DefaultStream, t, payload)
}

// SendStream sends a packet. Commands and events are forwarded immediately.
// ACL data is accumulated until the length declared in its header is
// reached; the first fragment must contain the full ACL header.
func (f *Framer) SendStream(stream StreamID, t PacketType, payload []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.initialized {
		return ErrNotInitialized
	}
	switch t {
	case Command, Event:
		if f.reasm.Active {
			return ErrReassemblyInProgress
		}
		if len(payload)+1 > len(f.writeBuf) {
			return ErrFrameTooLarge
		}
		f.writeBuf[0] = byte(t)
		copy(f.writeBuf[1:], payload)
		return f.forward(len(payload) + 1)
	case ACLData:
		return f.accumulate(stream, payload)
	}
	return ErrInvalidPacketType
}

func (f *Framer) accumulate(stream StreamID, fragment []byte) error {
	if !f.reasm.Active {
		if len(fragment) < ACLHeaderLen {
			return ErrShortHeader
		}
		total := 1 + ACLHeaderLen + ACLHeader(fragment).DataLen()
		if total > len(f.writeBuf) {
			return ErrFrameTooLarge
		}
		if 1+len(fragment) > total {
			return ErrFragmentOverrun
		}
		f.writeBuf[0] = byte(ACLData)
		f.reasm = ReassemblyState{
			Active:        true,
			Stream:        stream,
			TotalLength:   total,
			CurrentLength: 1,
		}
	} else if f.reasm.Stream != stream {
		return ErrReassemblyInProgress
	} else if f.reasm.CurrentLength+len(fragment) > f.reasm.TotalLength {
		return ErrFragmentOverrun
	}

	copy(f.writeBuf[f.reasm.CurrentLength:], fragment)
	f.reasm.CurrentLength += len(fragment)
	f.fragmentsSent.Add(1)
	if f.reasm.CurrentLength < f.reasm.TotalLength {
		return nil
	}
	n := f.reasm.TotalLength
	f.reasm = ReassemblyState{}
	return f.forward(n)
}

func (f *Framer) forward(n int) error {
	frame := Frame(f.writeBuf[:n])
	if glog.V(2) {
		glog.Infof("hci: tx %s % x", frame.Type(), frame.Payload())
	}
	if err := f.transport.SendFrame(frame); err != nil {
		f.sendErrors.Add(1)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	f.framesSent.Add(1)
	if tap := f.tap; tap != nil {
		tap.TapFrame(Sent, frame)
	}
	return nil
}

// AbortReassembly discards an incomplete ACL frame.
// It reports whether there was one.
func (f *Framer) AbortReassembly() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	active := f.reasm.Active
	f.reasm = ReassemblyState{}
	return active
}

// Reassembly returns the state of the in-flight ACL frame.
func (f *Framer) Reassembly() ReassemblyState {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.reasm
}

// Stats returns a snapshot of counters.
func (f *Framer) Stats() FramerStats {
	return FramerStats{
		FramesSent:     f.framesSent.Load(),
		FragmentsSent:  f.fragmentsSent.Load(),
		SendErrors:     f.sendErrors.Load(),
		FramesReceived: f.framesReceived.Load(),
		FramesDropped:  f.framesDropped.Load(),
	}
}

// receive is invoked by the transport.
func (f *Framer) receive(t PacketType, data []byte) {
	f.recvLock.Lock()
	defer f.recvLock.Unlock()
	if f.readBuf == nil {
		f.framesDropped.Add(1)
		return
	}
	n := len(data) + 1
	if n > len(f.readBuf) {
		f.framesDropped.Add(1)
		glog.Warningf("hci: drop %s frame of %d bytes", t, n)
		return
	}
	f.readBuf[0] = byte(t)
	copy(f.readBuf[1:], data)
	frame := Frame(f.readBuf[:n])
	f.framesReceived.Add(1)
	if glog.V(2) {
		glog.Infof("hci: rx %s % x", t, frame.Payload())
	}
	if tap := f.tap; tap != nil {
		tap.TapFrame(Received, frame)
	}
	if h := f.handler; h != nil {
		h.HandlePacket(t, frame.Payload())
	}
}
