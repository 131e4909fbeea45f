package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

const patientColumns = `id, full_name, email, birthday, ssn, credit_card, expiry_date, cvv, azure_blob_url, created_at`

// Store is the durable RecordStore.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

var _ repository.RecordStore = (*Store)(nil)

func (s *Store) CreatePatient(ctx context.Context, input model.PatientInput) (*model.PatientRecord, error) {
	rec := &model.PatientRecord{
		ID:           uuid.NewString(),
		PatientInput: input,
		CreatedAt:    s.now().UTC(),
	}

	query := `
		INSERT INTO patients (id, full_name, email, birthday, ssn, credit_card, expiry_date, cvv, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.FullName,
		rec.Email,
		rec.Birthday,
		rec.SSN,
		rec.CreditCard,
		rec.ExpiryDate,
		rec.CVV,
		rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return rec, nil
}

func (s *Store) GetPatient(ctx context.Context, id string) (*model.PatientRecord, error) {
	var rec model.PatientRecord
	err := s.db.GetContext(ctx, &rec, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &rec, nil
}

func (s *Store) SetPatientRemoteURL(ctx context.Context, id, url string) (*model.PatientRecord, error) {
	var rec model.PatientRecord
	query := `UPDATE patients SET azure_blob_url = $1 WHERE id = $2 RETURNING ` + patientColumns
	err := s.db.GetContext(ctx, &rec, query, url, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set patient remote url: %w", err)
	}
	return &rec, nil
}

func (s *Store) CreateChatMessage(ctx context.Context, role model.ChatRole, content string) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.now().UTC(),
	}

	query := `INSERT INTO chat_messages (id, role, content, timestamp) VALUES ($1, $2, $3, $4) RETURNING seq`
	if err := s.db.QueryRowxContext(ctx, query, msg.ID, string(msg.Role), msg.Content, msg.Timestamp).Scan(&msg.Seq); err != nil {
		return nil, fmt.Errorf("failed to create chat message: %w", err)
	}
	return msg, nil
}

func (s *Store) ListChatMessages(ctx context.Context) ([]*model.ChatMessage, error) {
	messages := []*model.ChatMessage{}
	query := `SELECT id, role, content, timestamp, seq FROM chat_messages ORDER BY timestamp ASC, seq ASC`
	if err := s.db.SelectContext(ctx, &messages, query); err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return messages, nil
}

func (s *Store) ClearChatMessages(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages`); err != nil {
		return fmt.Errorf("failed to clear chat messages: %w", err)
	}
	return nil
}

// SeedGreeting inserts the assistant greeting when the conversation table is
// empty, so restarts do not pile up greetings.
func (s *Store) SeedGreeting(ctx context.Context) error {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chat_messages`); err != nil {
		return fmt.Errorf("failed to count chat messages: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err := s.CreateChatMessage(ctx, model.ChatRoleAssistant, model.GreetingMessage)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
