package mws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageWireLayout(t *testing.T) {
	assert.Equal(t, []byte{0, 1, 2, 0, 0, 0, 0}, NewRequest(RequestAcquire, ANT).Encode(nil))
	assert.Equal(t, []byte{1, 3, 0, 0, 0, 0, 0}, NewNotify(EventDenied, BLE).Encode(nil))
	assert.Equal(t, []byte{1, 6, 0, 0xdc, 0x05, 0, 0},
		NewInactivityDuration(1500*time.Microsecond).Encode(nil))
}

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte{1, 6, 0, 0xdc, 0x05, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, KindNotify, msg.Kind)
	assert.Equal(t, EventInactivityDuration, msg.Event())
	assert.Equal(t, 1500*time.Microsecond, msg.Duration())

	var m Message
	require.NoError(t, m.UnmarshalBinary([]byte{0, 0, 3, 0, 0, 0, 0}))
	assert.Equal(t, NewRequest(RequestRegister, GenFSK), m)
}

func TestDecodeMessageMalformed(t *testing.T) {
	for _, b := range [][]byte{
		nil,
		{0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{2, 0, 0, 0, 0, 0, 0},
		{0, 4, 0, 0, 0, 0, 0},
		{1, 7, 0, 0, 0, 0, 0},
	} {
		_, err := DecodeMessage(b)
		assert.ErrorIs(t, err, ErrProtocolViolation, "% x", b)
		var verr *ViolationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestInactivityDurationClamp(t *testing.T) {
	assert.Zero(t, NewInactivityDuration(-time.Second).Value)
	assert.Equal(t, uint32(0xffffffff), NewInactivityDuration(100*time.Hour).Value)
}

func TestRequestAccepts(t *testing.T) {
	assert.True(t, RequestRegister.Accepts(EventInit))
	assert.False(t, RequestRegister.Accepts(EventActive))
	assert.True(t, RequestAcquire.Accepts(EventActive))
	assert.True(t, RequestAcquire.Accepts(EventDenied))
	assert.False(t, RequestAcquire.Accepts(EventIdle))
	assert.True(t, RequestAbort.Accepts(EventAbort))
	assert.True(t, RequestInactivity.Accepts(EventInactivityDuration))
	for ev := Event(0); ev < numEvents; ev++ {
		if ev.Unsolicited() {
			for r := Request(0); r < numRequests; r++ {
				assert.False(t, r.Accepts(ev), "%s accepts %s", r, ev)
			}
		}
	}
}

func TestMessageString(t *testing.T) {
	assert.Equal(t, "Request:Acquire(BLE)", NewRequest(RequestAcquire, BLE).String())
	assert.Equal(t, "Notify:Idle(802.15.4)", NewNotify(EventIdle, IEEE802154).String())
	assert.Equal(t, "Notify:GetInactivityDuration(2ms)", NewInactivityDuration(2*time.Millisecond).String())
}

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol("ble")
	require.NoError(t, err)
	assert.Equal(t, BLE, p)
	p, err = ParseProtocol("802.15.4")
	require.NoError(t, err)
	assert.Equal(t, IEEE802154, p)
	_, err = ParseProtocol("wifi")
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Equal(t, "Protocol(9)", ProtocolID(9).String())
}

func TestRegistry(t *testing.T) {
	var r Registry
	assert.ErrorIs(t, r.Register(NumProtocols, 0), ErrInvalidParameter)
	require.NoError(t, r.Register(ANT, 2))
	require.NoError(t, r.Register(BLE, 0))
	require.NoError(t, r.Register(ANT, 5))
	infos := r.Protocols()
	require.Len(t, infos, 2)
	assert.Equal(t, BLE, infos[0].Protocol)
	assert.Equal(t, ANT, infos[1].Protocol)
	assert.Equal(t, Priority(5), infos[1].Priority)
	assert.False(t, r.Registered(GenFSK))
}
