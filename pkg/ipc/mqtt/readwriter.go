package mqtt

import (
	"io"
	"sync"

	"github.com/golang/glog"
)

// Role is the side of the channel a ReadWriter represents.
type Role string

// Roles.
const (
	HostRole Role = "host"
	NBURole  Role = "nbu"
)

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == HostRole {
		return NBURole
	}
	return HostRole
}

// ReadWriter implements ipc.PacketReadWriter over a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	lock     sync.Mutex
	sub      *Subscription
	packetCh chan []byte
	closed   bool
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{Queue: q, packetCh: make(chan []byte, 16)}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForRole sets topics using the default convention where each side
// publishes to node/<own role> and subscribes node/<peer role>.
func (p *ReadWriter) ForRole(node string, role Role) *ReadWriter {
	return p.WithTopics(node+"/"+string(role.Peer()), node+"/"+string(role))
}

// Open subscribes SubTopic. Packets published before Open are lost.
func (p *ReadWriter) Open() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.sub != nil {
		return nil
	}
	sub := p.Queue.Sub(p.SubTopic, p.handleMsg)
	sub.Token.Wait()
	if err := sub.Token.Error(); err != nil {
		sub.Close()
		return err
	}
	p.sub = sub
	return nil
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	pkt, ok := <-p.packetCh
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close unsubscribes and ends ReadPacket with io.EOF.
func (p *ReadWriter) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var err error
	if p.sub != nil {
		err = p.sub.Close()
		p.sub = nil
	}
	close(p.packetCh)
	return err
}

func (p *ReadWriter) handleMsg(topic string, payload []byte) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return
	}
	select {
	case p.packetCh <- append([]byte(nil), payload...):
	default:
		glog.Warningf("mqtt: %s: drop packet of %d bytes", topic, len(payload))
	}
}
