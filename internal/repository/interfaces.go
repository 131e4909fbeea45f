package repository

import (
	"context"
	"errors"

	"github.com/jwalitptl/intake-api/internal/model"
)

// ErrNotFound reports that the requested entity does not exist. Callers
// check it with errors.Is.
var ErrNotFound = errors.New("not found")

// All repository interfaces in one file
type (
	PatientRepository interface {
		// CreatePatient allocates an id and creation time. The returned
		// record has no remote URL.
		CreatePatient(ctx context.Context, input model.PatientInput) (*model.PatientRecord, error)
		GetPatient(ctx context.Context, id string) (*model.PatientRecord, error)
		// SetPatientRemoteURL sets the remote URL of an existing record and
		// returns the updated record, or ErrNotFound without side effects.
		SetPatientRemoteURL(ctx context.Context, id, url string) (*model.PatientRecord, error)
	}

	ChatRepository interface {
		CreateChatMessage(ctx context.Context, role model.ChatRole, content string) (*model.ChatMessage, error)
		// ListChatMessages returns messages by timestamp ascending, ties in
		// insertion order.
		ListChatMessages(ctx context.Context) ([]*model.ChatMessage, error)
		// ClearChatMessages removes every message. The greeting is not reseeded.
		ClearChatMessages(ctx context.Context) error
	}

	// RecordStore is everything the orchestrators need from persistence.
	RecordStore interface {
		PatientRepository
		ChatRepository
		Ping(ctx context.Context) error
	}
)
