package ipc

import (
	"context"
	"io"
	"sync"

	fx "github.com/robotalks/coex.go/pkg/framework"
)

// Pipe is a bi-directional pipe for packets.
type Pipe struct {
	ReadWriter PacketReadWriter
	Handler    PacketHandler

	sendLock sync.Mutex
}

// NewPipe creates a Pipe with given PacketReadWriter.
func NewPipe(rw PacketReadWriter) *Pipe {
	return &Pipe{ReadWriter: rw}
}

// Send writes a packet. Concurrent senders are serialized.
func (p *Pipe) Send(pkt []byte) error {
	p.sendLock.Lock()
	defer p.sendLock.Unlock()
	return p.ReadWriter.WritePacket(pkt)
}

// Run implements Runnable. It dispatches received packets to Handler until
// reading fails, the handler fails or ctx is done. The ReadWriter is closed
// when Run returns.
func (p *Pipe) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p, func() error {
		for {
			pkt, err := p.ReadWriter.ReadPacket()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			if h := p.Handler; h != nil {
				if err = h.HandlePacket(ctx, pkt); err != nil {
					return err
				}
			}
		}
	})
}

// Close implements Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
