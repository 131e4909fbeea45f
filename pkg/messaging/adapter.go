package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, msg *Message) error

// Consume subscribes to channel and feeds every message to handler until ctx
// is done or the subscription closes. Undecodable messages and handler
// errors are logged and skipped.
func Consume(ctx context.Context, broker Broker, channel string, handler Handler, logger *zerolog.Logger) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-msgChan:
			if !ok {
				return nil
			}
			msg, err := DecodeMessage(data)
			if err != nil {
				logger.Warn().Err(err).Str("channel", channel).Msg("Dropping malformed message")
				continue
			}
			if err := handler(ctx, msg); err != nil {
				logger.Error().Err(err).Str("event_type", msg.Type).Str("event_id", msg.ID).Msg("Event handler failed")
			}
		}
	}
}
