// Package hci provides the host side packet framer.
package hci

// Upper protocol layers (BLE host, vendor protocols) hand commands, events
// and ACL data to a Framer. The Framer serializes each logical packet into
// one contiguous H4-style frame:
//
//   {packet type: 1 byte}{payload: up to MaxFrameSize-1 bytes}
//
// ACL data may be handed over in arbitrarily small pieces. The Framer
// accumulates them until the length declared in the ACL header is reached
// and forwards the whole frame to the Transport as a single unit.
//
// Received frames are copied into a private read buffer and handed to the
// registered callback synchronously.
//
// Producer: BLE host / radio co-processor
// Consumer: byte oriented transport (UART, IPC channel)
