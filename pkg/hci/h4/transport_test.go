package h4

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/robotalks/coex.go/pkg/hci"
)

func TestTransportFramerOverPipe(t *testing.T) {
	hostConn, ctrlConn := net.Pipe()
	host, ctrl := New(hostConn), New(ctrlConn)
	defer host.Close()
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go host.Run(ctx)
	go ctrl.Run(ctx)

	type rcvd struct {
		t    hci.PacketType
		data []byte
	}
	ctrlCh := make(chan rcvd, 4)
	ctrlFramer := hci.NewFramer(ctrl)
	require.NoError(t, ctrlFramer.Init(hci.HandlePacketFunc(func(pt hci.PacketType, payload []byte) {
		ctrlCh <- rcvd{t: pt, data: append([]byte(nil), payload...)}
	})))
	hostFramer := hci.NewFramer(host)
	require.NoError(t, hostFramer.Init(nil))

	acl := append([]byte(hci.NewACLHeader(0x40, 0x2, 6)), 1, 2, 3, 4, 5, 6)
	sendDone := make(chan error, 1)
	go func() {
		if err := hostFramer.Send(hci.Command, []byte{0x03, 0x0c, 0x00}); err != nil {
			sendDone <- err
			return
		}
		if err := hostFramer.Send(hci.ACLData, acl[:5]); err != nil {
			sendDone <- err
			return
		}
		sendDone <- hostFramer.Send(hci.ACLData, acl[5:])
	}()

	expected := []rcvd{
		{hci.Command, []byte{0x03, 0x0c, 0x00}},
		{hci.ACLData, acl},
	}
	for _, exp := range expected {
		select {
		case r := <-ctrlCh:
			require.Equal(t, exp, r)
		case <-time.After(time.Second):
			t.Fatal("receive timeout")
		}
	}
	require.NoError(t, <-sendDone)
}

func TestTransportInvalidFrame(t *testing.T) {
	conn, _ := net.Pipe()
	tr := New(conn)
	defer tr.Close()
	require.Error(t, tr.SendFrame(nil))
	require.Error(t, tr.SendFrame([]byte{0x09, 0x00}))
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	require.Equal(t, &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}, mode)

	mode, err = PortOptions{BaudRate: 921600, Parity: " even"}.SerialMode()
	require.NoError(t, err)
	require.Equal(t, 921600, mode.BaudRate)
	require.Equal(t, serial.EvenParity, mode.Parity)

	mode, err = PortOptions{Parity: "o"}.SerialMode()
	require.NoError(t, err)
	require.Equal(t, serial.OddParity, mode.Parity)

	_, err = PortOptions{Parity: "mark"}.SerialMode()
	require.Error(t, err)
	_, err = OpenPort("/dev/null", PortOptions{Parity: "space"})
	require.Error(t, err)
}
