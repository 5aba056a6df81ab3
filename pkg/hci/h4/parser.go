// Package h4 implements the UART (H4) transport for HCI frames.
package h4

import (
	"github.com/robotalks/coex.go/pkg/hci"
)

// Packet is a complete packet parsed from the byte stream.
type Packet struct {
	Type hci.PacketType
	// Data contains the header and payload, without the indicator.
	Data []byte
}

// Parser parses bytes received from an H4 stream.
type Parser struct {
	// MaxPacketSize bounds Data. Larger packets are skipped.
	MaxPacketSize int

	state   parseState
	pktType hci.PacketType
	buf     []byte
	need    int
	skipped int
}

type parseState int

const (
	stateIndicator parseState = iota // waiting for packet indicator
	stateHeader                      // collecting header bytes
	statePayload                     // collecting payload bytes
	stateDiscard                     // dropping an oversized payload
)

// Reset drops any partially received packet.
func (p *Parser) Reset() {
	p.state, p.buf, p.need = stateIndicator, nil, 0
}

// Receiving indicates a packet is partially received.
func (p *Parser) Receiving() bool {
	return p.state != stateIndicator
}

// Skipped returns the number of bytes dropped while resynchronizing.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Parse consumes one byte, returning a packet when complete.
func (p *Parser) Parse(b byte) *Packet {
	switch p.state {
	case stateIndicator:
		t := hci.PacketType(b)
		if !t.IsValid() {
			p.skipped++
			return nil
		}
		p.pktType, p.need = t, t.HeaderLen()
		p.buf = make([]byte, 0, p.need)
		p.state = stateHeader
	case stateHeader:
		p.buf = append(p.buf, b)
		if len(p.buf) < p.need {
			return nil
		}
		plen := p.pktType.PayloadLen(p.buf)
		if max := p.MaxPacketSize; max > 0 && len(p.buf)+plen+1 > max {
			p.skipped += len(p.buf) + 1
			p.need, p.buf = plen, nil
			if plen == 0 {
				p.Reset()
				return nil
			}
			p.state = stateDiscard
			return nil
		}
		if plen == 0 {
			return p.packetReady()
		}
		hdr := p.buf
		p.buf = make([]byte, len(hdr), len(hdr)+plen)
		copy(p.buf, hdr)
		p.need = len(hdr) + plen
		p.state = statePayload
	case statePayload:
		p.buf = append(p.buf, b)
		if len(p.buf) >= p.need {
			return p.packetReady()
		}
	case stateDiscard:
		p.skipped++
		if p.need--; p.need <= 0 {
			p.Reset()
		}
	}
	return nil
}

func (p *Parser) packetReady() *Packet {
	pkt := &Packet{Type: p.pktType, Data: p.buf}
	p.Reset()
	return pkt
}
