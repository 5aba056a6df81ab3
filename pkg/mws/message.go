package mws

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Kind tells a request from a notification.
type Kind uint8

// Message kinds.
const (
	KindRequest Kind = iota
	KindNotify
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "Request"
	case KindNotify:
		return "Notify"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Request is the code of a request message.
type Request uint8

// Requests.
const (
	RequestRegister Request = iota
	RequestAcquire
	RequestAbort
	RequestInactivity

	numRequests
)

var requestNames = [numRequests]string{"Register", "Acquire", "Abort", "Inactivity"}

// String implements fmt.Stringer.
func (r Request) String() string {
	if r < numRequests {
		return requestNames[r]
	}
	return fmt.Sprintf("Request(%d)", uint8(r))
}

// Accepts tells whether ev is a reply to r.
func (r Request) Accepts(ev Event) bool {
	switch r {
	case RequestRegister:
		return ev == EventInit
	case RequestAcquire:
		return ev == EventActive || ev == EventDenied
	case RequestAbort:
		return ev == EventAbort
	case RequestInactivity:
		return ev == EventInactivityDuration
	}
	return false
}

// carriesProtocol tells whether the reply must name the requested protocol.
func (r Request) carriesProtocol() bool {
	return r == RequestRegister || r == RequestAcquire
}

// Event is the code of a notification message.
type Event uint8

// Events.
const (
	EventInit Event = iota
	EventIdle
	EventActive
	EventDenied
	EventRelease
	EventAbort
	EventInactivityDuration

	numEvents
)

var eventNames = [numEvents]string{
	"Init", "Idle", "Active", "Denied", "Release", "Abort", "GetInactivityDuration",
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if e < numEvents {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", uint8(e))
}

// Unsolicited tells whether e is only ever sent on the sender's own account.
func (e Event) Unsolicited() bool {
	return e == EventIdle || e == EventRelease
}

// MessageSize is the encoded size of every message.
//
//	kind(1) | code(1) | protocol(1) | value(4, little-endian)
const MessageSize = 7

// Message is a request or notification exchanged between the cores.
type Message struct {
	Kind     Kind
	Code     uint8
	Protocol ProtocolID
	// Value is the inactivity duration in microseconds for
	// GetInactivityDuration, zero otherwise.
	Value uint32
}

// NewRequest creates a request message.
func NewRequest(r Request, p ProtocolID) Message {
	return Message{Kind: KindRequest, Code: uint8(r), Protocol: p}
}

// NewNotify creates a notification message.
func NewNotify(ev Event, p ProtocolID) Message {
	return Message{Kind: KindNotify, Code: uint8(ev), Protocol: p}
}

// NewInactivityDuration creates the reply to an Inactivity request.
func NewInactivityDuration(d time.Duration) Message {
	m := NewNotify(EventInactivityDuration, 0)
	us := d.Microseconds()
	switch {
	case us < 0:
		us = 0
	case us > math.MaxUint32:
		us = math.MaxUint32
	}
	m.Value = uint32(us)
	return m
}

// Request returns the request code, valid when Kind is KindRequest.
func (m Message) Request() Request {
	return Request(m.Code)
}

// Event returns the event code, valid when Kind is KindNotify.
func (m Message) Event() Event {
	return Event(m.Code)
}

// Duration returns Value as microseconds.
func (m Message) Duration() time.Duration {
	return time.Duration(m.Value) * time.Microsecond
}

// String implements fmt.Stringer.
func (m Message) String() string {
	switch m.Kind {
	case KindRequest:
		if !m.Request().carriesProtocol() {
			return "Request:" + m.Request().String()
		}
		return fmt.Sprintf("Request:%s(%s)", m.Request(), m.Protocol)
	case KindNotify:
		if m.Event() == EventInactivityDuration {
			return fmt.Sprintf("Notify:%s(%s)", m.Event(), m.Duration())
		}
		return fmt.Sprintf("Notify:%s(%s)", m.Event(), m.Protocol)
	}
	return fmt.Sprintf("%s:%d(%d)", m.Kind, m.Code, m.Protocol)
}

// Encode appends the wire form of m to b.
func (m Message) Encode(b []byte) []byte {
	var buf [MessageSize]byte
	buf[0], buf[1], buf[2] = byte(m.Kind), m.Code, byte(m.Protocol)
	binary.LittleEndian.PutUint32(buf[3:], m.Value)
	return append(b, buf[:]...)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m Message) MarshalBinary() ([]byte, error) {
	return m.Encode(make([]byte, 0, MessageSize)), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Message) UnmarshalBinary(b []byte) error {
	msg, err := DecodeMessage(b)
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

// DecodeMessage parses the wire form of a message. Malformed input
// returns a *ViolationError.
func DecodeMessage(b []byte) (Message, error) {
	if len(b) != MessageSize {
		return Message{}, violation(nil, "message of %d bytes", len(b))
	}
	m := Message{
		Kind:     Kind(b[0]),
		Code:     b[1],
		Protocol: ProtocolID(b[2]),
		Value:    binary.LittleEndian.Uint32(b[3:]),
	}
	switch m.Kind {
	case KindRequest:
		if m.Request() >= numRequests {
			return m, violation(&m, "unknown request")
		}
	case KindNotify:
		if m.Event() >= numEvents {
			return m, violation(&m, "unknown event")
		}
	default:
		return m, violation(&m, "unknown kind")
	}
	return m, nil
}
