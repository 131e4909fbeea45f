// Package event publishes domain events on a best-effort basis. A broker
// outage is logged and counted but never fails the operation that emitted
// the event.
package event

import (
	"context"
	"time"

	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

// Publishing runs inside the request, so a slow broker adds at most this
// much latency to the operation that emitted the event.
const defaultPublishTimeout = 500 * time.Millisecond

// Emitter is what orchestrators depend on.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{})
}

type Service struct {
	publisher messaging.Publisher
	logger    *logger.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
}

func NewService(publisher messaging.Publisher, log *logger.Logger, m *metrics.Metrics) *Service {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		publisher: publisher,
		logger:    log,
		metrics:   m,
		timeout:   defaultPublishTimeout,
	}
}

// Emit publishes synchronously with its own deadline. The caller's
// cancellation does not abort the publish.
func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.publisher.Publish(pubCtx, eventType, payload)
	s.metrics.IncEventPublished(eventType, err)
	if err != nil {
		s.logger.Error(err, "Failed to publish event", "event_type", eventType)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, string, interface{}) {}
