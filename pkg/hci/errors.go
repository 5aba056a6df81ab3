package hci

import "errors"

var (
	// ErrAlreadyInitialized indicates Init is called twice without Deinit.
	ErrAlreadyInitialized = errors.New("hci: already initialized")
	// ErrNotInitialized indicates the framer has no buffers.
	ErrNotInitialized = errors.New("hci: not initialized")
	// ErrOutOfMemory indicates a frame buffer can't be allocated.
	ErrOutOfMemory = errors.New("hci: out of memory")
	// ErrOS indicates the receive sink can't be registered with the transport.
	ErrOS = errors.New("hci: os error")
	// ErrTransport wraps failures returned by the underlying transport.
	ErrTransport = errors.New("hci: transport error")
	// ErrFrameTooLarge indicates the frame exceeds the buffer size.
	ErrFrameTooLarge = errors.New("hci: frame too large")
	// ErrReassemblyInProgress indicates an incomplete ACL frame owns the
	// write buffer.
	ErrReassemblyInProgress = errors.New("hci: reassembly in progress")
	// ErrFragmentOverrun indicates a fragment exceeds the declared ACL length.
	ErrFragmentOverrun = errors.New("hci: fragment exceeds declared length")
	// ErrInvalidPacketType indicates the packet type can't be sent.
	ErrInvalidPacketType = errors.New("hci: invalid packet type")
	// ErrShortHeader indicates the first ACL fragment lacks a full header.
	ErrShortHeader = errors.New("hci: short ACL header")
)
