package bridge

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/code19m/errx"

	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

// Publisher is the part of event.Dispatcher the relay needs.
type Publisher interface {
	Publish(ctx context.Context, e event.Event, opts ...event.PublishOption) error
}

// Relay consumes a topic and publishes the received events locally without
// persisting them.
type Relay struct {
	subscriber message.Subscriber
	topic      string
	target     Publisher
	logger     logger.Logger
	skipSource string
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// SkipSource drops messages published by the named service, so a service
// forwarding and relaying the same topic does not see its own events twice.
func SkipSource(service string) RelayOption {
	return func(r *Relay) {
		r.skipSource = service
	}
}

// NewRelay creates a relay from topic into target.
func NewRelay(subscriber message.Subscriber, topic string, target Publisher, log logger.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		subscriber: subscriber,
		topic:      topic,
		target:     target,
		logger:     log.Named("bridge.relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes messages until ctx is done or the subscriber closes.
func (r *Relay) Run(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return errx.Wrap(err, errx.WithDetails(errx.D{"topic": r.topic}))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.handle(ctx, msg)
		}
	}
}

func (r *Relay) handle(ctx context.Context, msg *message.Message) {
	if r.skipSource != "" && msg.Metadata.Get(MetaSource) == r.skipSource {
		msg.Ack()
		return
	}

	e, err := Unmarshal(msg)
	if err != nil {
		// redelivery would not help
		r.logger.Errorx(err)
		msg.Ack()
		return
	}

	err = r.target.Publish(ctx, e, event.WithoutPersist())
	if err != nil {
		r.logger.WithContext(ctx).Errorx(errx.Wrap(err))
		msg.Nack()
		return
	}
	msg.Ack()
}
