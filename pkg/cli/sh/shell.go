// Package sh provides the interactive shell issuing arbitration requests
// to a peer core.
package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/coex.go/pkg/env"
	"github.com/robotalks/coex.go/pkg/mws"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session
}

// Session is a running endpoint connected to the peer.
type Session struct {
	URL      string
	Cancel   func()
	Endpoint *mws.Endpoint
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Action is the body of a command working on the connected endpoint.
// The returned value is printed with Format.
type Action func(ctx context.Context, e *mws.Endpoint, args []string) (interface{}, error)

// ErrNotConnected is returned when a command runs without a session.
var ErrNotConnected = errors.New("not connected")

// MustBeConnected wraps an Action into a command func requiring a connection.
func MustBeConnected(action Action) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		out, err := ShellFrom(c).Exec(context.Background(), action, c.Args...)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(out)
	}
}

// Exec runs action on the session endpoint and formats its result.
func (s *Shell) Exec(ctx context.Context, action Action, args ...string) (string, error) {
	if s.Session == nil {
		return "", ErrNotConnected
	}
	v, err := action(ctx, s.Session.Endpoint, args)
	if err != nil {
		return "", err
	}
	return s.Format(v)
}

// Format renders v as JSON or with fmt according to OutputJSON.
func (s *Shell) Format(v interface{}) (string, error) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	if str, ok := v.(fmt.Stringer); ok {
		return str.String(), nil
	}
	return fmt.Sprintf("%+v", v), nil
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens the channel and starts an endpoint on it.
func (s *Shell) Connect(channelURL string) error {
	conf := *s.Config
	conf.ChannelURL = channelURL
	mwsConf, err := conf.MWSConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := conf.OpenChannel(ctx)
	if err != nil {
		cancel()
		return err
	}
	e := mws.NewEndpoint(ch,
		mws.WithConfig(mwsConf),
		mws.WithObserver(mws.ObserverFunc(s.notified)))
	s.Disconnect()
	s.Session = &Session{URL: channelURL, Cancel: cancel, Endpoint: e}
	go func() {
		if err := e.Run(ctx); err != nil && ctx.Err() == nil {
			s.Shell.Printf("connection lost: %v\n", err)
		}
	}()
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", channelURL))
	return nil
}

func (s *Shell) notified(msg mws.Message) {
	s.Shell.Printf("<< %s\n", msg)
}

// Disconnect disconnects current session.
func (s *Shell) Disconnect() {
	if s.Session != nil {
		s.Session.Cancel()
		s.Session = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.ChannelURL != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.ChannelURL)
		}
		if err := s.Connect(s.Config.ChannelURL); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.ChannelURL, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects to a peer.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[CHANNEL-URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			channelURL := s.Config.ChannelURL
			if len(c.Args) > 0 {
				channelURL = c.Args[0]
			}
			if err := s.Connect(channelURL); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current peer.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.MustLoad()).WithAutoConnect(true).Run(flag.Args()...)
}
