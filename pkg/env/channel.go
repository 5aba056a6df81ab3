package env

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/coex.go/pkg/hci/h4"
	"github.com/robotalks/coex.go/pkg/ipc"
	"github.com/robotalks/coex.go/pkg/ipc/mqtt"
	"github.com/robotalks/coex.go/pkg/ipc/stream"
	ws "github.com/robotalks/coex.go/pkg/ipc/websocket"
)

// Channel is a packet channel to the peer core.
type Channel interface {
	ipc.PacketReadWriter
	Close() error
}

// OpenChannel dials or listens on ChannelURL according to Listen.
func (c *Config) OpenChannel(ctx context.Context) (Channel, error) {
	if c.Listen {
		return c.AcceptChannel(ctx)
	}
	return c.DialChannel(ctx)
}

// DialChannel connects to the peer on ChannelURL.
func (c *Config) DialChannel(ctx context.Context) (Channel, error) {
	u, err := url.Parse(c.ChannelURL)
	if err != nil {
		return nil, fmt.Errorf("invalid channel URL: %v", err)
	}
	switch u.Scheme {
	case "tcp":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return stream.New(conn), nil
	case "serial":
		path, opts, err := SerialFromURL(u)
		if err != nil {
			return nil, err
		}
		port, err := h4.OpenPort(path, opts)
		if err != nil {
			return nil, err
		}
		return stream.New(port), nil
	case "ws", "wss":
		origin := "http://" + u.Host + "/"
		return ws.Dial(c.ChannelURL, origin)
	case "mqtt":
		return c.dialMQTT()
	}
	return nil, fmt.Errorf("unknown channel URL scheme: %q", u.Scheme)
}

func (c *Config) dialMQTT() (Channel, error) {
	role, err := c.MQTTRole()
	if err != nil {
		return nil, err
	}
	q, err := mqtt.NewQueueFromURL(c.ChannelURL)
	if err != nil {
		return nil, err
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	rw := mqtt.NewPacketReadWriter(q).ForRole(c.NodeID, role)
	if err := rw.Open(); err != nil {
		q.Close()
		return nil, err
	}
	return &mqttChannel{ReadWriter: rw, queue: q}, nil
}

type mqttChannel struct {
	*mqtt.ReadWriter
	queue *mqtt.Queue
}

func (c *mqttChannel) Close() error {
	err := c.ReadWriter.Close()
	c.queue.Close()
	return err
}

// AcceptChannel listens on ChannelURL and returns the first peer.
// Only tcp and ws URLs can be listened on.
func (c *Config) AcceptChannel(ctx context.Context) (Channel, error) {
	u, err := url.Parse(c.ChannelURL)
	if err != nil {
		return nil, fmt.Errorf("invalid channel URL: %v", err)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", u.Host)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "tcp":
		return acceptStream(ctx, ln)
	case "ws":
		return acceptWebsocket(ctx, ln, u.Path)
	}
	ln.Close()
	return nil, fmt.Errorf("can't listen on channel URL scheme: %q", u.Scheme)
}

func acceptStream(ctx context.Context, ln net.Listener) (Channel, error) {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	glog.Infof("waiting for peer on %s", ln.Addr())
	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	glog.Infof("peer connected from %s", conn.RemoteAddr())
	return stream.New(conn), nil
}

type wsChannel struct {
	*ws.ReadWriter
	done chan struct{}
}

func (c *wsChannel) Close() error {
	err := c.ReadWriter.Close()
	close(c.done)
	return err
}

func acceptWebsocket(ctx context.Context, ln net.Listener, path string) (Channel, error) {
	if path == "" {
		path = "/"
	}
	connCh := make(chan *wsChannel, 1)
	mux := http.NewServeMux()
	mux.Handle(path, websocket.Handler(func(conn *websocket.Conn) {
		ch := &wsChannel{ReadWriter: ws.New(conn), done: make(chan struct{})}
		select {
		case connCh <- ch:
			glog.Infof("peer connected from %s", conn.Request().RemoteAddr)
			// the connection is closed when the handler returns.
			<-ch.done
		default:
			glog.Warningf("reject extra peer from %s", conn.Request().RemoteAddr)
		}
	}))
	server := &http.Server{Handler: mux}
	go server.Serve(ln)
	glog.Infof("waiting for peer on ws://%s%s", ln.Addr(), path)
	select {
	case ch := <-connCh:
		// stop accepting, the hijacked connection stays open.
		ln.Close()
		return ch, nil
	case <-ctx.Done():
		server.Close()
		return nil, ctx.Err()
	}
}

// SerialFromURL extracts the device path and port options from
// serial:///dev/ttyX?baud=115200&parity=N.
func SerialFromURL(u *url.URL) (string, h4.PortOptions, error) {
	var opts h4.PortOptions
	if u.Path == "" {
		return "", opts, fmt.Errorf("serial URL without device path")
	}
	q := u.Query()
	if val := q.Get("baud"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return "", opts, fmt.Errorf("serial URL baud: %v", err)
		}
		opts.BaudRate = n
	}
	opts.Parity = q.Get("parity")
	if _, err := opts.SerialMode(); err != nil {
		return "", opts, err
	}
	return u.Path, opts, nil
}
