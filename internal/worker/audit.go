package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

// AuditWorker turns domain events into structured audit log lines. Events
// only reference records by id, so nothing sensitive reaches the log.
type AuditWorker struct {
	broker  messaging.Broker
	channel string
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAuditWorker(broker messaging.Broker, channel string, log *logger.Logger, m *metrics.Metrics) *AuditWorker {
	if channel == "" {
		channel = messaging.DefaultChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AuditWorker{
		broker:  broker,
		channel: channel,
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

// Start blocks until ctx is done or the subscription closes.
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Audit worker started", "channel", w.channel)
	err := messaging.Consume(ctx, w.broker, w.channel, w.Handle, w.logger.Zerolog())
	w.logger.Info("Audit worker stopped", "channel", w.channel)
	return err
}

func (w *AuditWorker) Handle(_ context.Context, msg *messaging.Message) error {
	w.metrics.IncEventReceived(msg.Type)

	log := w.logger.WithFields(map[string]interface{}{
		"event_id":   msg.ID,
		"event_type": msg.Type,
		"latency_ms": w.now().Sub(msg.OccurredAt).Milliseconds(),
	})

	switch msg.Type {
	case model.EventPatientSubmitted:
		var evt model.PatientSubmittedEvent
		if err := decodePayload(msg, &evt); err != nil {
			return err
		}
		log.Info("Patient record submitted", "patient_id", evt.PatientID, "blob_url", evt.BlobURL)

	case model.EventPatientSubmissionFailed:
		var evt model.PatientSubmissionFailedEvent
		if err := decodePayload(msg, &evt); err != nil {
			return err
		}
		log.Warn("Patient submission failed",
			"stage", evt.Stage,
			"timed_out", evt.TimedOut,
			"patient_id", evt.PatientID,
			"reason", evt.Message,
		)

	case model.EventChatExchanged:
		var evt model.ChatExchangedEvent
		if err := decodePayload(msg, &evt); err != nil {
			return err
		}
		log.Info("Chat exchange stored",
			"user_message_id", evt.UserMessageID,
			"assistant_message_id", evt.AssistantMessageID,
		)

	case model.EventChatCleared:
		log.Info("Chat history cleared")

	default:
		log.Debug("Ignoring unknown event")
	}
	return nil
}

func decodePayload(msg *messaging.Message, v interface{}) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}
	return nil
}
