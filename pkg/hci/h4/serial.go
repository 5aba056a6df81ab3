package h4

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// PortOptions describes the UART connection to the controller.
// H4 frames are carried as 8 data bits with one stop bit, only the
// line rate and parity vary between controllers.
type PortOptions struct {
	BaudRate int    `toml:"baud_rate"`
	Parity   string `toml:"parity"`
}

// DefaultBaudRate is used when PortOptions.BaudRate is unset.
const DefaultBaudRate = 115200

var parities = map[string]serial.Parity{
	"":     serial.NoParity,
	"N":    serial.NoParity,
	"NONE": serial.NoParity,
	"E":    serial.EvenParity,
	"EVEN": serial.EvenParity,
	"O":    serial.OddParity,
	"ODD":  serial.OddParity,
}

// SerialMode converts the options into a serial.Mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	parity, ok := parities[strings.ToUpper(strings.TrimSpace(o.Parity))]
	if !ok {
		return nil, fmt.Errorf("h4: parity %q not one of N, E, O", o.Parity)
	}
	mode := &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   parity,
	}
	if mode.BaudRate <= 0 {
		mode.BaudRate = DefaultBaudRate
	}
	return mode, nil
}

// OpenPort opens a serial port with the options.
func OpenPort(path string, opts PortOptions) (serial.Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "h4: open %s", path)
	}
	return port, nil
}

// OpenSerial opens a serial port and wraps it as a Transport.
func OpenSerial(path string, opts PortOptions) (*Transport, error) {
	port, err := OpenPort(path, opts)
	if err != nil {
		return nil, err
	}
	return New(port), nil
}
