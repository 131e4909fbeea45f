package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/service/event"
	"github.com/jwalitptl/intake-api/internal/service/generation"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

const defaultReplyTimeout = 60 * time.Second

// Exchange is one round trip: the stored user message and the stored reply.
type Exchange struct {
	UserMessage *model.ChatMessage `json:"userMessage"`
	AIMessage   *model.ChatMessage `json:"aiMessage"`
}

type Service struct {
	messages  repository.ChatRepository
	generator generation.Generator
	events    event.Emitter
	metrics   *metrics.Metrics
	logger    *logger.Logger
	timeout   time.Duration
}

func NewService(messages repository.ChatRepository, generator generation.Generator, events event.Emitter, m *metrics.Metrics, log *logger.Logger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}
	if events == nil {
		events = event.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		messages:  messages,
		generator: generator,
		events:    events,
		metrics:   m,
		logger:    log,
		timeout:   timeout,
	}
}

// Send stores content as a user message, asks for a reply and stores it. A
// failed reply leaves the user message in place.
func (s *Service) Send(ctx context.Context, content string) (*Exchange, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, apperrors.BadRequest("Message content is required", nil)
	}

	userMsg, err := s.messages.CreateChatMessage(ctx, model.ChatRoleUser, trimmed)
	if err != nil {
		return nil, apperrors.Storage("Failed to store chat message", err)
	}
	s.metrics.IncChatMessage(string(model.ChatRoleUser))

	reply, err := s.reply(ctx, content)
	if err != nil {
		s.logger.Error(err, "Chat reply failed", "user_message_id", userMsg.ID)
		return nil, err
	}

	aiMsg, err := s.messages.CreateChatMessage(ctx, model.ChatRoleAssistant, reply)
	if err != nil {
		return nil, apperrors.Storage("Failed to store chat reply", err)
	}
	s.metrics.IncChatMessage(string(model.ChatRoleAssistant))

	s.events.Emit(ctx, model.EventChatExchanged, model.ChatExchangedEvent{
		UserMessageID:      userMsg.ID,
		AssistantMessageID: aiMsg.ID,
	})

	return &Exchange{UserMessage: userMsg, AIMessage: aiMsg}, nil
}

func (s *Service) History(ctx context.Context) ([]*model.ChatMessage, error) {
	msgs, err := s.messages.ListChatMessages(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return msgs, nil
}

func (s *Service) Clear(ctx context.Context) error {
	if err := s.messages.ClearChatMessages(ctx); err != nil {
		return apperrors.Internal(err)
	}
	s.events.Emit(ctx, model.EventChatCleared, struct{}{})
	return nil
}

func (s *Service) reply(ctx context.Context, content string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.generator.ChatReply(callCtx, content, "")
	s.metrics.ObserveCollaborator("generator", "chat_reply", start, err)
	if err != nil {
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return "", apperrors.Generation("Failed to generate chat response", err).WithTimeout(timedOut)
	}
	if strings.TrimSpace(reply) == "" {
		reply = generation.FallbackReply
	}
	return reply, nil
}
