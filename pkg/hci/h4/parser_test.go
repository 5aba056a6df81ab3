package h4

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/coex.go/pkg/hci"
)

func parseAll(p *Parser, bs ...byte) (pkts []*Packet) {
	for _, b := range bs {
		if pkt := p.Parse(b); pkt != nil {
			pkts = append(pkts, pkt)
		}
	}
	return
}

func TestParserPacketTypes(t *testing.T) {
	testCases := []struct {
		name  string
		input []byte
		typ   hci.PacketType
		data  []byte
	}{
		{"command", []byte{0x01, 0x03, 0x0c, 0x00}, hci.Command, []byte{0x03, 0x0c, 0x00}},
		{"command params", []byte{0x01, 0x01, 0x20, 0x02, 0xaa, 0xbb}, hci.Command, []byte{0x01, 0x20, 0x02, 0xaa, 0xbb}},
		{"event", []byte{0x04, 0x0e, 0x04, 0x01, 0x03, 0x0c, 0x00}, hci.Event, []byte{0x0e, 0x04, 0x01, 0x03, 0x0c, 0x00}},
		{"acl", []byte{0x02, 0x40, 0x20, 0x03, 0x00, 1, 2, 3}, hci.ACLData, []byte{0x40, 0x20, 0x03, 0x00, 1, 2, 3}},
		{"acl empty", []byte{0x02, 0x40, 0x20, 0x00, 0x00}, hci.ACLData, []byte{0x40, 0x20, 0x00, 0x00}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p Parser
			pkts := parseAll(&p, tc.input...)
			require.Len(t, pkts, 1)
			require.Equal(t, tc.typ, pkts[0].Type)
			require.Equal(t, tc.data, pkts[0].Data)
			require.False(t, p.Receiving())
		})
	}
}

func TestParserResync(t *testing.T) {
	var p Parser
	pkts := parseAll(&p, 0x00, 0xff, 0x04, 0x05, 0x00, 0x04, 0x13, 0x01, 0x00)
	require.Len(t, pkts, 2)
	require.Equal(t, []byte{0x05, 0x00}, pkts[0].Data)
	require.Equal(t, []byte{0x13, 0x01, 0x00}, pkts[1].Data)
	require.Equal(t, 2, p.Skipped())
}

func TestParserOversized(t *testing.T) {
	p := Parser{MaxPacketSize: 8}
	input := []byte{0x02, 0x01, 0x00, 0x05, 0x00, 1, 2, 3, 4, 5}
	input = append(input, 0x04, 0x0e, 0x00)
	pkts := parseAll(&p, input...)
	require.Len(t, pkts, 1)
	require.Equal(t, hci.Event, pkts[0].Type)
	require.Equal(t, 10, p.Skipped())
}

func TestParserPartial(t *testing.T) {
	var p Parser
	require.Empty(t, parseAll(&p, 0x04, 0x0e, 0x02, 0x01))
	require.True(t, p.Receiving())
	p.Reset()
	require.False(t, p.Receiving())
	require.Len(t, parseAll(&p, 0x04, 0x0e, 0x00), 1)
}
