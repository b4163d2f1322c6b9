// Package bridge carries events between an event dispatcher and a message
// broker reached through watermill.
package bridge

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/code19m/errx"

	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

// Message metadata keys.
const (
	MetaEventName    = "event_name"
	MetaSagaID       = "saga_id"
	MetaSource       = "source"
	MetaPartitionKey = "partition_key"
)

// CodeMalformedMessage tags broker messages that do not decode to an event.
const CodeMalformedMessage = "MALFORMED_MESSAGE"

// Forwarder is an event.Handler publishing every event it receives to a topic.
type Forwarder struct {
	publisher message.Publisher
	topic     string
	logger    logger.Logger
}

// NewForwarder creates a forwarder publishing to topic.
func NewForwarder(publisher message.Publisher, topic string, log logger.Logger) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		topic:     topic,
		logger:    log.Named("bridge.forwarder"),
	}
}

// SubscribeTo registers the forwarder for each event name on d.
func (f *Forwarder) SubscribeTo(d *event.Dispatcher, names ...string) {
	for _, name := range names {
		d.Subscribe(name, f)
	}
}

// Apply implements event.Handler.
func (f *Forwarder) Apply(ctx context.Context, e event.Event) ([]event.Event, error) {
	msg, err := Marshal(e)
	if err != nil {
		return nil, err
	}
	msg.SetContext(ctx)

	err = f.publisher.Publish(f.topic, msg)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"topic": f.topic, "event_uuid": e.UUID}))
	}

	f.logger.WithContext(ctx).With("topic", f.topic).Debug("event forwarded")
	return nil, nil
}

// Marshal encodes e as a watermill message carrying the event uuid.
func Marshal(e event.Event) (*message.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	msg := message.NewMessage(e.UUID, body)
	msg.Metadata.Set(MetaEventName, e.Name)
	msg.Metadata.Set(MetaSagaID, e.SagaID)
	msg.Metadata.Set(MetaSource, meta.ServiceName())

	key := e.SagaID
	if key == "" {
		key = e.Name
	}
	msg.Metadata.Set(MetaPartitionKey, key)
	return msg, nil
}

// Unmarshal decodes a message produced by Marshal.
func Unmarshal(msg *message.Message) (event.Event, error) {
	var e event.Event
	err := json.Unmarshal(msg.Payload, &e)
	if err != nil {
		return event.Event{}, errx.Wrap(err,
			errx.WithCode(CodeMalformedMessage),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"message_uuid": msg.UUID}),
		)
	}
	if e.UUID == "" {
		e.UUID = msg.UUID
	}
	return e, nil
}
