// Package memory is the default, process-local record store. All data is
// lost when the process exits.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type Store struct {
	mu       sync.RWMutex
	patients map[string]*model.PatientRecord
	messages map[string]*model.ChatMessage
	seq      int64
	now      func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store seeded with the assistant greeting.
func NewStore(opts ...Option) *Store {
	s := &Store{
		patients: make(map[string]*model.PatientRecord),
		messages: make(map[string]*model.ChatMessage),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.addMessage(model.ChatRoleAssistant, model.GreetingMessage)
	return s
}

var _ repository.RecordStore = (*Store)(nil)

func (s *Store) CreatePatient(_ context.Context, input model.PatientInput) (*model.PatientRecord, error) {
	rec := &model.PatientRecord{
		ID:           uuid.NewString(),
		PatientInput: input,
		CreatedAt:    s.now().UTC(),
	}

	s.mu.Lock()
	s.patients[rec.ID] = rec
	s.mu.Unlock()

	return rec.Clone(), nil
}

func (s *Store) GetPatient(_ context.Context, id string) (*model.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) SetPatientRemoteURL(_ context.Context, id, url string) (*model.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec.AzureBlobURL = &url
	return rec.Clone(), nil
}

func (s *Store) CreateChatMessage(_ context.Context, role model.ChatRole, content string) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.addMessage(role, content)
	cp := *msg
	return &cp, nil
}

func (s *Store) ListChatMessages(_ context.Context) ([]*model.ChatMessage, error) {
	s.mu.RLock()
	out := make([]*model.ChatMessage, 0, len(s.messages))
	for _, m := range s.messages {
		cp := *m
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (s *Store) ClearChatMessages(_ context.Context) error {
	s.mu.Lock()
	s.messages = make(map[string]*model.ChatMessage)
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// addMessage must be called with mu held (or before the store is shared).
func (s *Store) addMessage(role model.ChatRole, content string) *model.ChatMessage {
	s.seq++
	msg := &model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.now().UTC(),
		Seq:       s.seq,
	}
	s.messages[msg.ID] = msg
	return msg
}
