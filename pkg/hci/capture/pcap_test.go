package capture

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/coex.go/pkg/hci"
)

type loopTransport struct {
	receiver hci.ReceiveFunc
	pending  [][]byte
	err      error
}

func (l *loopTransport) SendFrame(frame []byte) error {
	if l.err != nil {
		return l.err
	}
	l.pending = append(l.pending, append([]byte(nil), frame...))
	return nil
}

func (l *loopTransport) flush() {
	for _, frame := range l.pending {
		l.receiver(hci.PacketType(frame[0]), frame[1:])
	}
	l.pending = nil
}

func (l *loopTransport) SetReceiver(fn hci.ReceiveFunc) error {
	l.receiver = fn
	return nil
}

func TestCaptureFramer(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	ts := time.Unix(1700000000, 123000).UTC()
	w.Now = func() time.Time { return ts }

	tr := &loopTransport{}
	f := hci.NewFramer(tr, hci.WithTap(w))
	require.NoError(t, f.Init(nil))
	require.NoError(t, f.Send(hci.Command, []byte{0x03, 0x0c, 0x00}))
	tr.flush()

	tr.err = errors.New("link down")
	require.Error(t, f.Send(hci.Command, []byte{0x01, 0x10, 0x00}))
	require.NoError(t, w.Err())

	records, err := ReadAll(&buf)
	require.NoError(t, err)
	expected := []Record{
		{Timestamp: ts, Dir: hci.Sent, Frame: hci.Frame{0x01, 0x03, 0x0c, 0x00}},
		{Timestamp: ts, Dir: hci.Received, Frame: hci.Frame{0x01, 0x03, 0x0c, 0x00}},
	}
	if diff := cmp.Diff(expected, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestCaptureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hci.pcap")
	w, err := Create(path)
	require.NoError(t, err)
	ts := time.Unix(1700000000, 0)
	require.NoError(t, w.WriteFrame(ts, hci.Received, hci.NewFrame(hci.Event, []byte{0x0e, 0x00})))
	require.NoError(t, w.Close())

	records, err := Open(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, hci.Event, records[0].Frame.Type())
	require.Equal(t, hci.Received, records[0].Dir)
	require.True(t, ts.Equal(records[0].Timestamp))
}

func TestCaptureWrongLinkType(t *testing.T) {
	_, err := ReadAll(bytes.NewReader(nil))
	require.Error(t, err)
}
