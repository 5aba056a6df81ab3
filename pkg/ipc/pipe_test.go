package ipc

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairDelivers(t *testing.T) {
	a, b := NewPair(4)
	pkt := []byte{1, 2, 3}
	require.NoError(t, a.WritePacket(pkt))
	pkt[0] = 9
	got, err := b.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, b.WritePacket([]byte{4}))
	got, err = a.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, got)
}

func TestPairClose(t *testing.T) {
	a, b := NewPair(1)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	_, err := b.ReadPacket()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, ErrClosed, b.WritePacket([]byte{1}))
	assert.Equal(t, ErrClosed, a.WritePacket([]byte{1}))
}

func TestPipeRun(t *testing.T) {
	a, b := NewPair(4)
	received := make(chan []byte, 4)
	p := NewPipe(b)
	p.Handler = HandlePacketFunc(func(_ context.Context, pkt []byte) error {
		received <- pkt
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, a.WritePacket([]byte("hello")))
	select {
	case pkt := <-received:
		assert.Equal(t, []byte("hello"), pkt)
	case <-time.After(time.Second):
		t.Fatal("packet not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("pipe not stopped")
	}
	_, err := a.ReadPacket()
	assert.Equal(t, io.EOF, err)
}

func TestPipeHandlerError(t *testing.T) {
	a, b := NewPair(1)
	failure := errors.New("failure")
	p := NewPipe(b)
	p.Handler = HandlePacketFunc(func(context.Context, []byte) error { return failure })
	require.NoError(t, a.WritePacket([]byte{0}))
	assert.Equal(t, failure, p.Run(context.Background()))
}

func TestPipeSend(t *testing.T) {
	a, b := NewPair(1)
	p := NewPipe(a)
	require.NoError(t, p.Send([]byte{7}))
	got, err := b.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, got)
	require.NoError(t, p.Close())
	assert.Equal(t, ErrClosed, p.Send([]byte{8}))
}
