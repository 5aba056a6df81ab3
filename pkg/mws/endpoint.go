package mws

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/coex.go/pkg/ipc"
)

// Radio is the local owner of the radio hardware.
type Radio interface {
	// Acquire asks for the radio on behalf of p.
	Acquire(p ProtocolID, exclusive bool) (bool, error)
	// Abort releases the radio whoever owns it.
	Abort() error
	// SignalIdle tells p no longer uses the radio.
	SignalIdle(p ProtocolID) error
	// InactivityDuration is how long the radio has been unused.
	InactivityDuration() time.Duration
}

// Observer receives notifications which are not replies to a request.
type Observer interface {
	HandleNotify(Message)
}

// ObserverFunc is the func form of Observer.
type ObserverFunc func(Message)

// HandleNotify implements Observer.
func (f ObserverFunc) HandleNotify(msg Message) {
	f(msg)
}

// Tracer sees every message sent or received.
type Tracer interface {
	TraceMessage(dir Direction, msg Message)
}

// Stats counts endpoint activity.
type Stats struct {
	RequestsSent   uint64
	RepliesMatched uint64
	Timeouts       uint64
	Violations     uint64
	RequestsServed uint64
	Notifications  uint64
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithConfig sets the Config.
func WithConfig(c Config) Option {
	return func(e *Endpoint) { e.config = c }
}

// WithRadio sets the local radio owner.
func WithRadio(r Radio) Option {
	return func(e *Endpoint) { e.radio = r }
}

// WithObserver installs an Observer.
func WithObserver(o Observer) Option {
	return func(e *Endpoint) { e.observer = o }
}

// WithTracer installs a Tracer.
func WithTracer(t Tracer) Option {
	return func(e *Endpoint) { e.tracer = t }
}

// Endpoint is one side of the arbitration channel.
type Endpoint struct {
	config   Config
	radio    Radio
	observer Observer
	tracer   Tracer

	pipe   *ipc.Pipe
	callCh chan struct{}
	slot   requestSlot
	local  Registry
	remote Registry

	requestsSent, repliesMatched, timeouts atomic.Uint64
	violations, requestsServed, notifies   atomic.Uint64
}

// NewEndpoint creates an Endpoint over a packet channel.
func NewEndpoint(rw ipc.PacketReadWriter, opts ...Option) *Endpoint {
	e := &Endpoint{
		config: DefaultConfig(),
		pipe:   ipc.NewPipe(rw),
		callCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.config.normalize()
	e.pipe.Handler = e
	return e
}

// Config returns the effective Config.
func (e *Endpoint) Config() Config {
	return e.config
}

// Run receives messages until the channel is closed or ctx is done.
func (e *Endpoint) Run(ctx context.Context) error {
	return e.pipe.Run(ctx)
}

// Close closes the channel.
func (e *Endpoint) Close() error {
	return e.pipe.Close()
}

// Register announces p to the peer and waits for Init.
func (e *Endpoint) Register(ctx context.Context, p ProtocolID) error {
	if !p.Valid() {
		return ErrInvalidParameter
	}
	if _, err := e.request(ctx, NewRequest(RequestRegister, p)); err != nil {
		return err
	}
	e.local.Register(p, e.config.Priorities.Of(p))
	return nil
}

// Acquire asks the peer for the radio on behalf of p.
// It reports whether access was granted.
func (e *Endpoint) Acquire(ctx context.Context, p ProtocolID) (bool, error) {
	if !p.Valid() {
		return false, ErrInvalidParameter
	}
	reply, err := e.request(ctx, NewRequest(RequestAcquire, p))
	if err != nil {
		return false, err
	}
	return reply.Event() == EventActive, nil
}

// Abort asks the peer to release the radio and waits until it did.
func (e *Endpoint) Abort(ctx context.Context) error {
	_, err := e.request(ctx, NewRequest(RequestAbort, 0))
	return err
}

// InactivityDuration asks the peer how long its radio has been unused.
func (e *Endpoint) InactivityDuration(ctx context.Context) (time.Duration, error) {
	reply, err := e.request(ctx, NewRequest(RequestInactivity, 0))
	if err != nil {
		return 0, err
	}
	return reply.Duration(), nil
}

// SignalIdle tells the peer p no longer uses the radio. It doesn't wait.
func (e *Endpoint) SignalIdle(p ProtocolID) error {
	return e.Notify(EventIdle, p)
}

// Notify sends a notification without waiting.
func (e *Endpoint) Notify(ev Event, p ProtocolID) error {
	if !p.Valid() || ev >= numEvents {
		return ErrInvalidParameter
	}
	return e.send(NewNotify(ev, p))
}

// RequestState returns the state of the request slot.
func (e *Endpoint) RequestState() RequestState {
	return e.slot.snapshot()
}

// LocalProtocols lists protocols registered with the peer.
func (e *Endpoint) LocalProtocols() []ProtocolInfo {
	return e.local.Protocols()
}

// RemoteProtocols lists protocols the peer registered.
func (e *Endpoint) RemoteProtocols() []ProtocolInfo {
	return e.remote.Protocols()
}

// Stats returns a snapshot of counters.
func (e *Endpoint) Stats() Stats {
	return Stats{
		RequestsSent:   e.requestsSent.Load(),
		RepliesMatched: e.repliesMatched.Load(),
		Timeouts:       e.timeouts.Load(),
		Violations:     e.violations.Load(),
		RequestsServed: e.requestsServed.Load(),
		Notifications:  e.notifies.Load(),
	}
}

func (e *Endpoint) request(ctx context.Context, req Message) (Message, error) {
	select {
	case e.callCh <- struct{}{}:
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
	defer func() { <-e.callCh }()

	f := e.slot.begin(req)
	defer e.slot.finish(f)
	if err := e.send(req); err != nil {
		return Message{}, err
	}
	e.requestsSent.Add(1)

	timer := time.NewTimer(e.config.RequestTimeout)
	defer timer.Stop()
	select {
	case r := <-f.result:
		if r.err != nil {
			e.violations.Add(1)
			glog.Warningf("mws: %v", r.err)
			return r.msg, r.err
		}
		e.repliesMatched.Add(1)
		return r.msg, nil
	case <-timer.C:
		e.timeouts.Add(1)
		glog.Warningf("mws: %s: no reply in %s", req, e.config.RequestTimeout)
		return Message{}, ErrTimeout
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (e *Endpoint) send(msg Message) error {
	if glog.V(2) {
		glog.Infof("mws: tx %s", msg)
	}
	if t := e.tracer; t != nil {
		t.TraceMessage(Sent, msg)
	}
	if err := e.pipe.Send(msg.Encode(nil)); err != nil {
		if errors.Is(err, ipc.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// HandlePacket implements ipc.PacketHandler. Malformed and unexpected
// messages are logged and counted; only channel failures end the loop.
func (e *Endpoint) HandlePacket(ctx context.Context, pkt []byte) error {
	msg, err := DecodeMessage(pkt)
	if err != nil {
		e.violations.Add(1)
		glog.Warningf("mws: rx %v", err)
		return nil
	}
	if glog.V(2) {
		glog.Infof("mws: rx %s", msg)
	}
	if t := e.tracer; t != nil {
		t.TraceMessage(Received, msg)
	}
	if msg.Kind == KindRequest {
		return e.serve(msg)
	}
	e.handleNotify(msg)
	return nil
}

func (e *Endpoint) handleNotify(msg Message) {
	ev := msg.Event()
	if !ev.Unsolicited() && e.slot.complete(msg) {
		return
	}
	e.notifies.Add(1)
	if ev.Unsolicited() {
		if r := e.radio; r != nil && msg.Protocol.Valid() {
			if err := r.SignalIdle(msg.Protocol); err != nil {
				glog.Warningf("mws: signal idle %s: %v", msg.Protocol, err)
			}
		}
	} else {
		e.violations.Add(1)
		glog.Warningf("mws: unexpected %s", msg)
	}
	if o := e.observer; o != nil {
		o.HandleNotify(msg)
	}
}

func (e *Endpoint) serve(req Message) error {
	var resp Message
	switch req.Request() {
	case RequestRegister:
		if err := e.remote.Register(req.Protocol, e.config.Priorities.Of(req.Protocol)); err != nil {
			e.violations.Add(1)
			glog.Warningf("mws: %s: %v", req, err)
			return nil
		}
		glog.Infof("mws: peer registered %s", req.Protocol)
		resp = NewNotify(EventInit, req.Protocol)
	case RequestAcquire:
		ev := EventDenied
		if e.grant(req.Protocol) {
			ev = EventActive
		}
		resp = NewNotify(ev, req.Protocol)
	case RequestAbort:
		if r := e.radio; r != nil {
			if err := r.Abort(); err != nil {
				glog.Warningf("mws: abort: %v", err)
			}
		}
		resp = NewNotify(EventAbort, req.Protocol)
	case RequestInactivity:
		var d time.Duration
		if r := e.radio; r != nil {
			d = r.InactivityDuration()
		}
		resp = NewInactivityDuration(d)
	}
	e.requestsServed.Add(1)
	if err := e.send(resp); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

func (e *Endpoint) grant(p ProtocolID) bool {
	if !p.Valid() {
		return false
	}
	if e.config.RequireRegistration && !e.remote.Registered(p) {
		glog.Warningf("mws: deny %s: not registered", p)
		return false
	}
	if e.config.GrantPolicy != GrantByRadio || e.radio == nil {
		return true
	}
	granted, err := e.radio.Acquire(p, e.config.Exclusive)
	if err != nil {
		glog.Warningf("mws: acquire %s: %v", p, err)
		return false
	}
	return granted
}
