package mws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/coex.go/pkg/ipc"
)

const testTimeout = 100 * time.Millisecond

func testConfig() Config {
	c := DefaultConfig()
	c.RequestTimeout = testTimeout
	return c
}

func runEndpoint(t *testing.T, e *Endpoint) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// newEndpoints connects a host and an NBU endpoint back to back.
func newEndpoints(t *testing.T, hostOpts, nbuOpts []Option) (*Endpoint, *Endpoint) {
	a, b := ipc.NewPair(8)
	host := NewEndpoint(a, append([]Option{WithConfig(testConfig())}, hostOpts...)...)
	nbu := NewEndpoint(b, append([]Option{WithConfig(testConfig())}, nbuOpts...)...)
	runEndpoint(t, host)
	runEndpoint(t, nbu)
	return host, nbu
}

// rawPeer is the far end of a channel driven directly by the test.
type rawPeer struct {
	t  *testing.T
	rw *ipc.PairEnd
}

func newRawPeer(t *testing.T, opts ...Option) (*Endpoint, *rawPeer) {
	a, b := ipc.NewPair(8)
	e := NewEndpoint(a, append([]Option{WithConfig(testConfig())}, opts...)...)
	runEndpoint(t, e)
	t.Cleanup(func() { b.Close() })
	return e, &rawPeer{t: t, rw: b}
}

func (p *rawPeer) read() Message {
	pkt, err := p.rw.ReadPacket()
	require.NoError(p.t, err)
	msg, err := DecodeMessage(pkt)
	require.NoError(p.t, err)
	return msg
}

func (p *rawPeer) write(msg Message) {
	require.NoError(p.t, p.rw.WritePacket(msg.Encode(nil)))
}

type fakeRadio struct {
	lock      sync.Mutex
	grant     bool
	acquired  []ProtocolID
	aborted   int
	idle      []ProtocolID
	inactive  time.Duration
	exclusive bool
}

func (r *fakeRadio) Acquire(p ProtocolID, exclusive bool) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.acquired = append(r.acquired, p)
	r.exclusive = exclusive
	return r.grant, nil
}

func (r *fakeRadio) Abort() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.aborted++
	return nil
}

func (r *fakeRadio) SignalIdle(p ProtocolID) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.idle = append(r.idle, p)
	return nil
}

func (r *fakeRadio) InactivityDuration() time.Duration {
	return r.inactive
}

func (r *fakeRadio) idleSignals() []ProtocolID {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]ProtocolID(nil), r.idle...)
}

func TestRegisterAcquire(t *testing.T) {
	host, nbu := newEndpoints(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, host.Register(ctx, BLE))
	remote := nbu.RemoteProtocols()
	require.Len(t, remote, 1)
	assert.Equal(t, BLE, remote[0].Protocol)
	assert.Equal(t, DefaultPriorities[BLE], remote[0].Priority)
	require.Len(t, host.LocalProtocols(), 1)

	granted, err := host.Acquire(ctx, BLE)
	require.NoError(t, err)
	assert.True(t, granted)

	require.NoError(t, host.Abort(ctx))

	state := host.RequestState()
	assert.Equal(t, StatusIdle, state.Status)
	assert.True(t, state.HasReply)
	assert.Equal(t, EventAbort, state.Reply.Event())

	stats := host.Stats()
	assert.Equal(t, uint64(3), stats.RequestsSent)
	assert.Equal(t, uint64(3), stats.RepliesMatched)
	assert.Equal(t, uint64(3), nbu.Stats().RequestsServed)
}

// Without a registration check the peer grants Acquire before Register.
func TestAcquireBeforeRegister(t *testing.T) {
	host, nbu := newEndpoints(t, nil, nil)
	granted, err := host.Acquire(context.Background(), IEEE802154)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Empty(t, nbu.RemoteProtocols())
}

func TestRequireRegistration(t *testing.T) {
	cfg := testConfig()
	cfg.RequireRegistration = true
	host, _ := newEndpoints(t, nil, []Option{WithConfig(cfg)})
	ctx := context.Background()

	granted, err := host.Acquire(ctx, ANT)
	require.NoError(t, err)
	assert.False(t, granted)

	require.NoError(t, host.Register(ctx, ANT))
	granted, err = host.Acquire(ctx, ANT)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestGrantByRadio(t *testing.T) {
	cfg := testConfig()
	cfg.GrantPolicy = GrantByRadio
	cfg.Exclusive = true
	radio := &fakeRadio{}
	host, _ := newEndpoints(t, nil, []Option{WithConfig(cfg), WithRadio(radio)})
	ctx := context.Background()

	granted, err := host.Acquire(ctx, BLE)
	require.NoError(t, err)
	assert.False(t, granted)

	radio.lock.Lock()
	radio.grant = true
	radio.lock.Unlock()
	granted, err = host.Acquire(ctx, GenFSK)
	require.NoError(t, err)
	assert.True(t, granted)

	radio.lock.Lock()
	defer radio.lock.Unlock()
	assert.Equal(t, []ProtocolID{BLE, GenFSK}, radio.acquired)
	assert.True(t, radio.exclusive)
}

func TestAbortReleasesPeerRadio(t *testing.T) {
	radio := &fakeRadio{inactive: 3 * time.Millisecond}
	host, _ := newEndpoints(t, nil, []Option{WithRadio(radio)})
	ctx := context.Background()

	require.NoError(t, host.Abort(ctx))
	radio.lock.Lock()
	assert.Equal(t, 1, radio.aborted)
	radio.lock.Unlock()

	d, err := host.InactivityDuration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Millisecond, d)
}

func TestSignalIdle(t *testing.T) {
	radio := &fakeRadio{}
	notified := make(chan Message, 1)
	host, _ := newEndpoints(t, nil, []Option{
		WithRadio(radio),
		WithObserver(ObserverFunc(func(m Message) { notified <- m })),
	})

	require.NoError(t, host.SignalIdle(BLE))
	select {
	case msg := <-notified:
		assert.Equal(t, NewNotify(EventIdle, BLE), msg)
	case <-time.After(time.Second):
		t.Fatal("idle not observed")
	}
	assert.Equal(t, []ProtocolID{BLE}, radio.idleSignals())
	assert.ErrorIs(t, host.SignalIdle(NumProtocols), ErrInvalidParameter)
}

func TestRequestTimeout(t *testing.T) {
	e, peer := newRawPeer(t)
	start := time.Now()
	_, err := e.Acquire(context.Background(), BLE)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), testTimeout)
	assert.Equal(t, NewRequest(RequestAcquire, BLE), peer.read())
	assert.Equal(t, StatusIdle, e.RequestState().Status)
	assert.Equal(t, uint64(1), e.Stats().Timeouts)

	// A late reply completes nothing.
	peer.write(NewNotify(EventActive, BLE))
	require.Eventually(t, func() bool { return e.Stats().Violations == 1 }, time.Second, time.Millisecond)
}

func TestRequestContextCanceled(t *testing.T) {
	e, _ := newRawPeer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.Acquire(ctx, BLE)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// A notification of another kind must not complete the outstanding request.
func TestReplyCorrelation(t *testing.T) {
	e, peer := newRawPeer(t)
	type result struct {
		granted bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		granted, err := e.Acquire(context.Background(), BLE)
		done <- result{granted, err}
	}()

	assert.Equal(t, NewRequest(RequestAcquire, BLE), peer.read())
	peer.write(NewNotify(EventInit, BLE))
	peer.write(NewNotify(EventRelease, BLE))
	peer.write(NewNotify(EventAbort, BLE))
	require.Eventually(t, func() bool { return e.Stats().Violations == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, StatusOngoing, e.RequestState().Status)
	select {
	case <-done:
		t.Fatal("request completed by unrelated notification")
	default:
	}

	peer.write(NewNotify(EventDenied, BLE))
	r := <-done
	require.NoError(t, r.err)
	assert.False(t, r.granted)
	assert.Equal(t, EventDenied, e.RequestState().Reply.Event())
}

func TestReplyProtocolMismatch(t *testing.T) {
	e, peer := newRawPeer(t)
	done := make(chan error, 1)
	go func() { done <- e.Register(context.Background(), ANT) }()
	assert.Equal(t, NewRequest(RequestRegister, ANT), peer.read())
	peer.write(NewNotify(EventInit, GenFSK))
	err := <-done
	assert.ErrorIs(t, err, ErrProtocolViolation)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, GenFSK, verr.Msg.Protocol)
	assert.Empty(t, e.LocalProtocols())
}

func TestRequestsSerialized(t *testing.T) {
	e, peer := newRawPeer(t)
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, p := range []ProtocolID{BLE, ANT} {
		wg.Add(1)
		go func(p ProtocolID) {
			defer wg.Done()
			_, err := e.Acquire(context.Background(), p)
			errs <- err
		}(p)
	}
	for i := 0; i < 2; i++ {
		req := peer.read()
		require.Equal(t, KindRequest, req.Kind)
		peer.write(NewNotify(EventActive, req.Protocol))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, uint64(2), e.Stats().RepliesMatched)
}

func TestMalformedPacket(t *testing.T) {
	e, peer := newRawPeer(t)
	require.NoError(t, peer.rw.WritePacket([]byte{1, 2, 3}))
	require.NoError(t, peer.rw.WritePacket([]byte{9, 0, 0, 0, 0, 0, 0}))
	require.Eventually(t, func() bool { return e.Stats().Violations == 2 }, time.Second, time.Millisecond)

	// Loop still serves requests.
	peer.write(NewRequest(RequestRegister, GenFSK))
	assert.Equal(t, NewNotify(EventInit, GenFSK), peer.read())
}

func TestInvalidParameter(t *testing.T) {
	e, _ := newRawPeer(t)
	ctx := context.Background()
	assert.ErrorIs(t, e.Register(ctx, NumProtocols), ErrInvalidParameter)
	_, err := e.Acquire(ctx, 7)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.ErrorIs(t, e.Notify(EventIdle, 200), ErrInvalidParameter)
	assert.Zero(t, e.Stats().RequestsSent)
}

func TestClosedEndpoint(t *testing.T) {
	a, b := ipc.NewPair(1)
	e := NewEndpoint(a, WithConfig(testConfig()))
	require.NoError(t, b.Close())
	_, err := e.Acquire(context.Background(), BLE)
	assert.ErrorIs(t, err, ErrClosed)
}

type recordingTracer struct {
	lock sync.Mutex
	msgs []string
}

func (r *recordingTracer) TraceMessage(dir Direction, msg Message) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.msgs = append(r.msgs, dir.String()+" "+msg.String())
}

func TestTracer(t *testing.T) {
	tracer := &recordingTracer{}
	host, _ := newEndpoints(t, []Option{WithTracer(tracer)}, nil)
	require.NoError(t, host.Register(context.Background(), BLE))
	tracer.lock.Lock()
	defer tracer.lock.Unlock()
	assert.Equal(t, []string{"tx Request:Register(BLE)", "rx Notify:Init(BLE)"}, tracer.msgs)
}
