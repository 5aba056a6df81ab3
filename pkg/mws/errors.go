package mws

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned for an out-of-range protocol.
	ErrInvalidParameter = errors.New("mws: invalid parameter")
	// ErrTimeout is returned when the peer does not reply in time.
	ErrTimeout = errors.New("mws: request timeout")
	// ErrProtocolViolation is matched by every *ViolationError.
	ErrProtocolViolation = errors.New("mws: protocol violation")
	// ErrTransport wraps failures of the message channel.
	ErrTransport = errors.New("mws: transport error")
	// ErrClosed is returned after the endpoint is closed.
	ErrClosed = errors.New("mws: closed")
)

// ViolationError describes a message breaking the protocol.
type ViolationError struct {
	Reason string
	// Msg is the offending message if it could be decoded.
	Msg *Message
}

// Error implements error.
func (e *ViolationError) Error() string {
	if e.Msg != nil {
		return fmt.Sprintf("mws: protocol violation: %s: %s", e.Reason, e.Msg)
	}
	return "mws: protocol violation: " + e.Reason
}

// Is makes errors.Is(err, ErrProtocolViolation) true.
func (e *ViolationError) Is(target error) bool {
	return target == ErrProtocolViolation
}

func violation(msg *Message, format string, args ...interface{}) *ViolationError {
	return &ViolationError{Reason: fmt.Sprintf(format, args...), Msg: msg}
}
