package h4

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/coex.go/pkg/hci"
)

const readChunkSize = 512

// Transport implements hci.Transport over a byte stream.
type Transport struct {
	Port io.ReadWriteCloser

	writeLock sync.Mutex
	recvLock  sync.RWMutex
	receiver  hci.ReceiveFunc
	parser    Parser
}

// New creates a Transport on an opened port.
func New(port io.ReadWriteCloser) *Transport {
	return &Transport{
		Port:   port,
		parser: Parser{MaxPacketSize: hci.MaxFrameSize},
	}
}

// SendFrame implements hci.Transport.
func (t *Transport) SendFrame(frame []byte) error {
	if len(frame) == 0 || !hci.PacketType(frame[0]).IsValid() {
		return errors.Errorf("h4: invalid frame [ % x ]", frame)
	}
	t.writeLock.Lock()
	defer t.writeLock.Unlock()
	n, err := t.Port.Write(frame)
	if err != nil {
		return errors.Wrap(err, "h4: write")
	}
	if n != len(frame) {
		return errors.Errorf("h4: short write %d/%d", n, len(frame))
	}
	return nil
}

// SetReceiver implements hci.Transport.
func (t *Transport) SetReceiver(fn hci.ReceiveFunc) error {
	t.recvLock.Lock()
	t.receiver = fn
	t.recvLock.Unlock()
	return nil
}

// Run reads the port and dispatches parsed packets until ctx is done
// or the port fails. io.EOF ends Run without error.
func (t *Transport) Run(ctx context.Context) error {
	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go t.readLoop(subCtx, chunkCh, errCh)
	for {
		select {
		case chunk := <-chunkCh:
			t.feed(chunk)
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "h4: read")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the port.
func (t *Transport) Close() error {
	return t.Port.Close()
}

func (t *Transport) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	for {
		buf := make([]byte, readChunkSize)
		n, err := t.Port.Read(buf)
		if n > 0 {
			select {
			case chunkCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func (t *Transport) feed(chunk []byte) {
	for _, b := range chunk {
		pkt := t.parser.Parse(b)
		if pkt == nil {
			continue
		}
		t.recvLock.RLock()
		fn := t.receiver
		t.recvLock.RUnlock()
		if fn == nil {
			glog.V(2).Infof("h4: no receiver, drop %s", pkt.Type)
			continue
		}
		fn(pkt.Type, pkt.Data)
	}
}

// Skipped returns the number of bytes dropped while resynchronizing.
// Only meaningful after Run returns.
func (t *Transport) Skipped() int {
	return t.parser.Skipped()
}
