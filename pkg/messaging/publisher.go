package messaging

import (
	"context"
)

// DefaultChannel carries all domain events of the service.
const DefaultChannel = "intake.events"

// EventPublisher publishes envelopes onto a single broker channel.
type EventPublisher struct {
	broker  Broker
	channel string
}

func NewEventPublisher(broker Broker, channel string) *EventPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventPublisher{broker: broker, channel: channel}
}

func (p *EventPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	msg, err := NewMessage(eventType, payload)
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, p.channel, msg)
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error {
	return nil
}
