// Package mws implements radio arbitration between the host core and the
// NBU core sharing one transceiver (MWS coexistence).
//
// The two cores exchange fixed-size messages over an ipc channel. A message
// is either a Request (Register, Acquire, Abort, Inactivity) or a Notify
// carrying an Event. Every request is answered by exactly one notification
// of the expected kind:
//
//	Register   -> Init
//	Acquire    -> Active | Denied
//	Abort      -> Abort
//	Inactivity -> GetInactivityDuration
//
// Idle and Release are never replies; they tell the peer the radio is no
// longer used and are sent with SignalIdle or Notify.
//
// An Endpoint plays both sides: it issues requests to its peer and answers
// the requests the peer issues. At most one request is outstanding per
// Endpoint; concurrent callers are serialized.
package mws
