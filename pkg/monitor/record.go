// Package monitor publishes traffic records of the framer and the
// arbitration endpoint, and decodes them for display.
package monitor

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
)

// Source tells which component produced a record.
type Source string

// Sources.
const (
	SourceHCI Source = "hci"
	SourceMWS Source = "mws"
)

// Record is one traced frame or arbitration message.
type Record struct {
	ID      string
	Node    string
	Source  Source
	Dir     string
	Time    time.Time
	Summary string
	// Data is the raw frame or encoded message.
	Data []byte
}

// Record field names.
const (
	fieldID      = "id"
	fieldNode    = "node"
	fieldSource  = "source"
	fieldDir     = "dir"
	fieldTime    = "time"
	fieldSummary = "summary"
	fieldData    = "data"
)

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

// Struct converts the record into a protobuf Struct.
func (r *Record) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:      stringValue(r.ID),
		fieldNode:    stringValue(r.Node),
		fieldSource:  stringValue(string(r.Source)),
		fieldDir:     stringValue(r.Dir),
		fieldTime:    stringValue(r.Time.UTC().Format(time.RFC3339Nano)),
		fieldSummary: stringValue(r.Summary),
		fieldData:    stringValue(hex.EncodeToString(r.Data)),
	}}
}

// Encode marshals the record.
func (r *Record) Encode() ([]byte, error) {
	return proto.Marshal(r.Struct())
}

// RecordFromStruct converts a protobuf Struct back into a Record.
func RecordFromStruct(s *structpb.Struct) (*Record, error) {
	str := func(name string) string {
		return s.GetFields()[name].GetStringValue()
	}
	r := &Record{
		ID:      str(fieldID),
		Node:    str(fieldNode),
		Source:  Source(str(fieldSource)),
		Dir:     str(fieldDir),
		Summary: str(fieldSummary),
	}
	if r.ID == "" {
		return nil, fmt.Errorf("monitor: record without %s", fieldID)
	}
	var err error
	if ts := str(fieldTime); ts != "" {
		if r.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("monitor: %s: %w", fieldTime, err)
		}
	}
	if r.Data, err = hex.DecodeString(str(fieldData)); err != nil {
		return nil, fmt.Errorf("monitor: %s: %w", fieldData, err)
	}
	return r, nil
}

// Decode unmarshals a published record.
func Decode(payload []byte) (*Record, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	return RecordFromStruct(&s)
}

// Format renders the record as a single line.
func (r *Record) Format() string {
	return fmt.Sprintf("%s %s %s %s %s",
		r.Time.Local().Format("15:04:05.000000"), r.Node, r.Source, r.Dir, r.Summary)
}

// JSON renders the record as JSON.
func (r *Record) JSON() (string, error) {
	m := jsonpb.Marshaler{OrigName: true}
	return m.MarshalToString(r.Struct())
}
