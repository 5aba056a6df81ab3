package mws

import "sync"

// RequestStatus is the phase of the request slot.
type RequestStatus int

// Request statuses.
const (
	StatusIdle RequestStatus = iota
	StatusOngoing
	StatusEnded
)

// String implements fmt.Stringer.
func (s RequestStatus) String() string {
	switch s {
	case StatusOngoing:
		return "Ongoing"
	case StatusEnded:
		return "Ended"
	}
	return "Idle"
}

// RequestState is a snapshot of the request slot.
type RequestState struct {
	Status RequestStatus
	// Request is the outstanding or last request.
	Request Message
	// Reply is the last notification completing a request.
	Reply    Message
	HasReply bool
}

type reply struct {
	msg Message
	err error
}

// future is resolved by the receive path with the reply to req.
type future struct {
	req    Message
	result chan reply
}

// requestSlot holds the single outstanding request of an endpoint.
type requestSlot struct {
	lock    sync.Mutex
	state   RequestState
	pending *future
}

func (s *requestSlot) begin(req Message) *future {
	f := &future{req: req, result: make(chan reply, 1)}
	s.lock.Lock()
	s.pending = f
	s.state.Status = StatusOngoing
	s.state.Request = req
	s.lock.Unlock()
	return f
}

// complete resolves the pending future if msg replies to it.
func (s *requestSlot) complete(msg Message) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	f := s.pending
	if f == nil {
		return false
	}
	req := f.req.Request()
	if !req.Accepts(msg.Event()) {
		return false
	}
	r := reply{msg: msg}
	if req.carriesProtocol() && msg.Protocol != f.req.Protocol {
		r.err = violation(&msg, "reply to %s", f.req)
	}
	s.pending = nil
	s.state.Status = StatusEnded
	s.state.Reply, s.state.HasReply = msg, true
	f.result <- r
	return true
}

// finish returns the slot to idle after the caller is done with f.
func (s *requestSlot) finish(f *future) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.pending == f {
		s.pending = nil
	}
	s.state.Status = StatusIdle
}

func (s *requestSlot) snapshot() RequestState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}
