package sh

import (
	"context"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/coex.go/pkg/mws"
)

// ParseProtocolArg parses the protocol argument of a command.
func ParseProtocolArg(args []string) (mws.ProtocolID, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("PROTOCOL required")
	}
	return mws.ParseProtocol(args[0])
}

// ParseEventArg parses an event name.
func ParseEventArg(arg string) (mws.Event, error) {
	for ev := mws.EventInit; ev <= mws.EventInactivityDuration; ev++ {
		if strings.EqualFold(ev.String(), arg) {
			return ev, nil
		}
	}
	return 0, fmt.Errorf("unknown event %q", arg)
}

// Status summarizes an endpoint for display.
type Status struct {
	Request string    `json:"request"`
	Status  string    `json:"status"`
	Reply   string    `json:"reply,omitempty"`
	Stats   mws.Stats `json:"stats"`
	Local   []string  `json:"local"`
	Remote  []string  `json:"remote"`
	Timeout string    `json:"timeout"`
	GrantBy string    `json:"grant_policy"`
}

// StatusOf collects the Status of an endpoint.
func StatusOf(e *mws.Endpoint) *Status {
	state := e.RequestState()
	conf := e.Config()
	st := &Status{
		Status:  state.Status.String(),
		Stats:   e.Stats(),
		Local:   protocolNames(e.LocalProtocols()),
		Remote:  protocolNames(e.RemoteProtocols()),
		Timeout: conf.RequestTimeout.String(),
		GrantBy: conf.GrantPolicy.String(),
	}
	if state.Status != mws.StatusIdle || state.HasReply {
		st.Request = state.Request.String()
	}
	if state.HasReply {
		st.Reply = state.Reply.String()
	}
	return st
}

// String implements fmt.Stringer.
func (s *Status) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "request: %s", s.Status)
	if s.Request != "" {
		fmt.Fprintf(&b, " %s", s.Request)
	}
	if s.Reply != "" {
		fmt.Fprintf(&b, " -> %s", s.Reply)
	}
	fmt.Fprintf(&b, "\nlocal: %s\nremote: %s\n", strings.Join(s.Local, " "), strings.Join(s.Remote, " "))
	fmt.Fprintf(&b, "sent %d, matched %d, timeouts %d, violations %d, served %d, notifications %d",
		s.Stats.RequestsSent, s.Stats.RepliesMatched, s.Stats.Timeouts,
		s.Stats.Violations, s.Stats.RequestsServed, s.Stats.Notifications)
	return b.String()
}

func protocolNames(infos []mws.ProtocolInfo) []string {
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, fmt.Sprintf("%s(%d)", info.Protocol, info.Priority))
	}
	return names
}

type result struct {
	OK      bool   `json:"ok"`
	Granted *bool  `json:"granted,omitempty"`
	Value   string `json:"value,omitempty"`
}

func (r result) String() string {
	switch {
	case r.Granted != nil && *r.Granted:
		return "Granted"
	case r.Granted != nil:
		return "Denied"
	case r.Value != "":
		return r.Value
	}
	return "OK"
}

type remoteList []string

func (l remoteList) String() string {
	if len(l) == 0 {
		return "No protocols registered by peer"
	}
	return strings.Join(l, "\n")
}

func withProtocol(fn func(ctx context.Context, e *mws.Endpoint, p mws.ProtocolID) (interface{}, error)) Action {
	return func(ctx context.Context, e *mws.Endpoint, args []string) (interface{}, error) {
		p, err := ParseProtocolArg(args)
		if err != nil {
			return nil, err
		}
		return fn(ctx, e, p)
	}
}

func register(ctx context.Context, e *mws.Endpoint, p mws.ProtocolID) (interface{}, error) {
	if err := e.Register(ctx, p); err != nil {
		return nil, err
	}
	return result{OK: true}, nil
}

func acquire(ctx context.Context, e *mws.Endpoint, p mws.ProtocolID) (interface{}, error) {
	granted, err := e.Acquire(ctx, p)
	if err != nil {
		return nil, err
	}
	return result{OK: true, Granted: &granted}, nil
}

func abort(ctx context.Context, e *mws.Endpoint, _ []string) (interface{}, error) {
	if err := e.Abort(ctx); err != nil {
		return nil, err
	}
	return result{OK: true}, nil
}

func idle(_ context.Context, e *mws.Endpoint, p mws.ProtocolID) (interface{}, error) {
	if err := e.SignalIdle(p); err != nil {
		return nil, err
	}
	return result{OK: true}, nil
}

func notify(_ context.Context, e *mws.Endpoint, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("EVENT and PROTOCOL required")
	}
	ev, err := ParseEventArg(args[0])
	if err != nil {
		return nil, err
	}
	p, err := ParseProtocolArg(args[1:])
	if err != nil {
		return nil, err
	}
	if err := e.Notify(ev, p); err != nil {
		return nil, err
	}
	return result{OK: true}, nil
}

func inactivity(ctx context.Context, e *mws.Endpoint, _ []string) (interface{}, error) {
	d, err := e.InactivityDuration(ctx)
	if err != nil {
		return nil, err
	}
	return result{OK: true, Value: d.String()}, nil
}

func remote(_ context.Context, e *mws.Endpoint, _ []string) (interface{}, error) {
	return remoteList(protocolNames(e.RemoteProtocols())), nil
}

func status(_ context.Context, e *mws.Endpoint, _ []string) (interface{}, error) {
	return StatusOf(e), nil
}

var (
	// RegisterCmd registers a protocol with the peer.
	RegisterCmd = ishell.Cmd{
		Name:    "register",
		Aliases: []string{"reg"},
		Help:    "PROTOCOL",
		Func:    MustBeConnected(withProtocol(register)),
	}

	// AcquireCmd acquires the radio from the peer.
	AcquireCmd = ishell.Cmd{
		Name:    "acquire",
		Aliases: []string{"acq"},
		Help:    "PROTOCOL",
		Func:    MustBeConnected(withProtocol(acquire)),
	}

	// AbortCmd asks the peer to release the radio.
	AbortCmd = ishell.Cmd{
		Name: "abort",
		Help: "",
		Func: MustBeConnected(abort),
	}

	// IdleCmd signals the radio is idle.
	IdleCmd = ishell.Cmd{
		Name: "idle",
		Help: "PROTOCOL",
		Func: MustBeConnected(withProtocol(idle)),
	}

	// NotifyCmd sends an arbitrary notification.
	NotifyCmd = ishell.Cmd{
		Name: "notify",
		Help: "EVENT PROTOCOL",
		Func: MustBeConnected(notify),
	}

	// InactivityCmd queries how long the peer radio is unused.
	InactivityCmd = ishell.Cmd{
		Name:    "inactivity",
		Aliases: []string{"inact"},
		Help:    "",
		Func:    MustBeConnected(inactivity),
	}

	// RemoteCmd lists protocols the peer registered.
	RemoteCmd = ishell.Cmd{
		Name: "remote",
		Help: "",
		Func: MustBeConnected(remote),
	}

	// StatusCmd shows the endpoint state.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func:    MustBeConnected(status),
	}
)

func init() {
	AddCmds(
		&RegisterCmd,
		&AcquireCmd,
		&AbortCmd,
		&IdleCmd,
		&NotifyCmd,
		&InactivityCmd,
		&RemoteCmd,
		&StatusCmd,
	)
}
