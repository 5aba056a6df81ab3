package monitor

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/coex.go/pkg/hci"
	"github.com/robotalks/coex.go/pkg/ipc/mqtt"
	"github.com/robotalks/coex.go/pkg/mws"
)

// Sink delivers encoded records. Publish must not block.
type Sink interface {
	Publish(topic string, payload []byte) error
}

// QueueSink publishes records to MQTT without waiting for delivery.
type QueueSink struct {
	Queue *mqtt.Queue
}

// Publish implements Sink.
func (s *QueueSink) Publish(topic string, payload []byte) error {
	s.Queue.Pub(topic, payload)
	return nil
}

// TraceTopic is the topic records of node are published to.
func TraceTopic(node string) string {
	return node + "/trace"
}

// Publisher implements hci.Tap and mws.Tracer.
type Publisher struct {
	Node string
	Sink Sink
	Now  func() time.Time
}

// NewPublisher creates a Publisher for node.
func NewPublisher(node string, sink Sink) *Publisher {
	return &Publisher{Node: node, Sink: sink, Now: time.Now}
}

// TapFrame implements hci.Tap.
func (p *Publisher) TapFrame(dir hci.Direction, frame hci.Frame) {
	p.publish(&Record{
		Source:  SourceHCI,
		Dir:     dir.String(),
		Summary: fmt.Sprintf("%s % x", frame.Type(), frame.Payload()),
		Data:    append([]byte(nil), frame...),
	})
}

// TraceMessage implements mws.Tracer.
func (p *Publisher) TraceMessage(dir mws.Direction, msg mws.Message) {
	p.publish(&Record{
		Source:  SourceMWS,
		Dir:     dir.String(),
		Summary: msg.String(),
		Data:    msg.Encode(nil),
	})
}

func (p *Publisher) publish(r *Record) {
	r.ID, r.Node, r.Time = uuid.NewString(), p.Node, p.Now()
	payload, err := r.Encode()
	if err == nil {
		err = p.Sink.Publish(TraceTopic(p.Node), payload)
	}
	if err != nil {
		glog.Warningf("monitor: publish %s: %v", r.Source, err)
	}
}
