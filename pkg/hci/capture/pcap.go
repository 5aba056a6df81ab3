// Package capture records HCI frames into pcap files.
package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/robotalks/coex.go/pkg/hci"
)

// LinkTypeH4WithPhdr is LINKTYPE_BLUETOOTH_HCI_H4_WITH_PHDR.
// Each record starts with a 4-byte big-endian direction.
const LinkTypeH4WithPhdr layers.LinkType = 201

// SnapLen is the snapshot length written into the file header.
const SnapLen = 65535

const phdrLen = 4

// Writer writes frames as pcap records. It implements hci.Tap.
type Writer struct {
	Now func() time.Time

	lock   sync.Mutex
	pw     *pcapgo.Writer
	closer io.Closer
	err    error
}

// NewWriter writes the file header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(SnapLen, LinkTypeH4WithPhdr); err != nil {
		return nil, err
	}
	return &Writer{Now: time.Now, pw: pw}, nil
}

// Create creates a capture file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// WriteFrame writes one frame record.
func (w *Writer) WriteFrame(ts time.Time, dir hci.Direction, frame hci.Frame) error {
	data := make([]byte, phdrLen+len(frame))
	binary.BigEndian.PutUint32(data[:phdrLen], uint32(dir))
	copy(data[phdrLen:], frame)
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.pw.WritePacket(ci, data)
}

// TapFrame implements hci.Tap. The first write error is kept in Err.
func (w *Writer) TapFrame(dir hci.Direction, frame hci.Frame) {
	if err := w.WriteFrame(w.Now(), dir, frame); err != nil {
		w.lock.Lock()
		if w.err == nil {
			w.err = err
			glog.Errorf("capture: write: %v", err)
		}
		w.lock.Unlock()
	}
}

// Err returns the first error of TapFrame.
func (w *Writer) Err() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.err
}

// Close closes the underlying file if created by Create.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Record is a frame read back from a capture.
type Record struct {
	Timestamp time.Time
	Dir       hci.Direction
	Frame     hci.Frame
}

// ReadAll reads all records from a capture.
func ReadAll(r io.Reader) ([]Record, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}
	if pr.LinkType() != LinkTypeH4WithPhdr {
		return nil, fmt.Errorf("capture: unexpected link type %d", pr.LinkType())
	}
	var records []Record
	for {
		data, ci, err := pr.ReadPacketData()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		if len(data) <= phdrLen {
			return records, fmt.Errorf("capture: short record of %d bytes", len(data))
		}
		records = append(records, Record{
			Timestamp: ci.Timestamp,
			Dir:       hci.Direction(binary.BigEndian.Uint32(data[:phdrLen])),
			Frame:     hci.Frame(data[phdrLen:]),
		})
	}
}

// Open reads all records from a capture file.
func Open(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f)
}
