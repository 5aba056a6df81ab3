// Package radio tracks ownership of the radio on the core driving the hardware.
package radio

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/coex.go/pkg/mws"
)

// Owner describes the protocol holding the radio.
type Owner struct {
	Protocol  mws.ProtocolID
	Exclusive bool
	Since     time.Time
}

// Listener is notified when ownership changes. owner is nil when released.
type Listener interface {
	RadioChanged(owner *Owner)
}

// ListenerFunc is the func form of Listener.
type ListenerFunc func(*Owner)

// RadioChanged implements Listener.
func (f ListenerFunc) RadioChanged(owner *Owner) {
	f(owner)
}

// Arbiter grants the radio to one protocol at a time.
//
// A request is granted when the radio is free, when the requester already
// owns it, or when the requester has strictly higher priority than a
// non-exclusive owner.
type Arbiter struct {
	Priorities mws.Priorities
	// Now is the clock, replaced in tests.
	Now func() time.Time

	lock       sync.Mutex
	owner      *Owner
	releasedAt time.Time
	listeners  []Listener
}

// NewArbiter creates an idle Arbiter.
func NewArbiter(prios mws.Priorities) *Arbiter {
	a := &Arbiter{Priorities: prios, Now: time.Now}
	a.releasedAt = a.Now()
	return a
}

// AddListener registers a Listener.
func (a *Arbiter) AddListener(l Listener) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.listeners = append(a.listeners, l)
}

// Owner returns the current owner.
func (a *Arbiter) Owner() (Owner, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.owner == nil {
		return Owner{}, false
	}
	return *a.owner, true
}

// Acquire implements mws.Radio.
func (a *Arbiter) Acquire(p mws.ProtocolID, exclusive bool) (bool, error) {
	if !p.Valid() {
		return false, mws.ErrInvalidParameter
	}
	a.lock.Lock()
	cur := a.owner
	switch {
	case cur == nil:
	case cur.Protocol == p:
		if cur.Exclusive == exclusive {
			a.lock.Unlock()
			return true, nil
		}
	case cur.Exclusive || a.Priorities.Of(p) >= a.Priorities.Of(cur.Protocol):
		a.lock.Unlock()
		glog.V(2).Infof("radio: deny %s, owned by %s", p, cur.Protocol)
		return false, nil
	default:
		glog.Infof("radio: %s preempts %s", p, cur.Protocol)
	}
	owner := &Owner{Protocol: p, Exclusive: exclusive, Since: a.Now()}
	a.owner = owner
	listeners := a.listeners
	a.lock.Unlock()
	notify(listeners, owner)
	return true, nil
}

// Abort implements mws.Radio.
func (a *Arbiter) Abort() error {
	a.release(nil)
	return nil
}

// SignalIdle implements mws.Radio. It releases the radio if p owns it.
func (a *Arbiter) SignalIdle(p mws.ProtocolID) error {
	if !p.Valid() {
		return mws.ErrInvalidParameter
	}
	a.release(&p)
	return nil
}

// InactivityDuration implements mws.Radio. It is zero while owned.
func (a *Arbiter) InactivityDuration() time.Duration {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.owner != nil {
		return 0
	}
	return a.Now().Sub(a.releasedAt)
}

func (a *Arbiter) release(p *mws.ProtocolID) {
	a.lock.Lock()
	if a.owner == nil || (p != nil && a.owner.Protocol != *p) {
		a.lock.Unlock()
		return
	}
	glog.V(2).Infof("radio: released by %s", a.owner.Protocol)
	a.owner = nil
	a.releasedAt = a.Now()
	listeners := a.listeners
	a.lock.Unlock()
	notify(listeners, nil)
}

func notify(listeners []Listener, owner *Owner) {
	for _, l := range listeners {
		if owner != nil {
			o := *owner
			l.RadioChanged(&o)
		} else {
			l.RadioChanged(nil)
		}
	}
}
