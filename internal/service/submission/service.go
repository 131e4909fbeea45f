// Package submission runs the generate, validate, store, upload and link
// pipeline behind "Generate & Submit".
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/service/event"
	"github.com/jwalitptl/intake-api/internal/service/generation"
	"github.com/jwalitptl/intake-api/pkg/blobstore"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
	"github.com/jwalitptl/intake-api/pkg/security"
	"github.com/jwalitptl/intake-api/pkg/validator"
)

const (
	DefaultCollaboratorTimeout = 60 * time.Second

	snapshotContentType = "application/json"
	uploadType          = "patient-form-data"
)

// Result is a fully linked submission.
type Result struct {
	Record    *model.PatientRecord
	RemoteURL string
	Input     model.PatientInput
}

// Error is a failed submission. PartialRecord is set when the record was
// stored before the failing step and is never rolled back.
type Error struct {
	*apperrors.StageError
	PartialRecord *model.PatientRecord
}

func (e *Error) Unwrap() error {
	return e.StageError
}

type Config struct {
	// CollaboratorTimeout bounds every generation, store and upload call.
	CollaboratorTimeout time.Duration
	// Encryptor, when set, seals the sensitive fields of the uploaded
	// snapshot. The stored record keeps plaintext.
	Encryptor security.Encryptor
}

type Service struct {
	patients  repository.PatientRepository
	generator generation.Generator
	uploader  blobstore.Uploader
	validator validator.Validator
	events    event.Emitter
	metrics   *metrics.Metrics
	logger    *logger.Logger
	timeout   time.Duration
	encryptor security.Encryptor
	now       func() time.Time
}

func NewService(
	patients repository.PatientRepository,
	generator generation.Generator,
	uploader blobstore.Uploader,
	events event.Emitter,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) *Service {
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = DefaultCollaboratorTimeout
	}
	if events == nil {
		events = event.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		patients:  patients,
		generator: generator,
		uploader:  uploader,
		validator: validator.New(),
		events:    events,
		metrics:   m,
		logger:    log,
		timeout:   cfg.CollaboratorTimeout,
		encryptor: cfg.Encryptor,
		now:       time.Now,
	}
}

// Submit runs the pipeline once. Steps are sequential and nothing is retried.
// On failure the returned error is an *Error.
func (s *Service) Submit(ctx context.Context) (*Result, error) {
	// 1. generation
	payload, timedOut, err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) (model.PatientPayload, error) {
		start := time.Now()
		p, err := s.generator.GeneratePatient(ctx)
		s.metrics.ObserveCollaborator("generator", "generate_patient", start, err)
		return p, err
	})
	if err != nil {
		return nil, s.fail(ctx, apperrors.Generation("Failed to generate patient data", err).WithTimeout(timedOut), nil)
	}
	if err := generation.CheckRequiredFields(payload); err != nil {
		return nil, s.fail(ctx, apperrors.Generation("Failed to generate patient data", err), nil)
	}

	// 2. validation
	var input model.PatientInput
	if err := s.validator.Decode(payload, &input); err != nil {
		return nil, s.fail(ctx, apperrors.Validation("Generated patient data does not match the schema", err), nil)
	}

	// 3. storage
	record, timedOut, err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) (*model.PatientRecord, error) {
		return s.patients.CreatePatient(ctx, input)
	})
	if err != nil {
		return nil, s.fail(ctx, apperrors.Storage("Failed to store patient record", err).WithTimeout(timedOut), nil)
	}

	// 4. upload
	url, timedOut, err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) (string, error) {
		return s.upload(ctx, record)
	})
	if err != nil {
		return nil, s.fail(ctx, apperrors.Upload("Failed to upload to Azure Blob Storage", err).WithTimeout(timedOut), record)
	}

	// 5. link
	linked, timedOut, err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) (*model.PatientRecord, error) {
		return s.patients.SetPatientRemoteURL(ctx, record.ID, url)
	})
	if err != nil {
		return nil, s.fail(ctx, apperrors.Storage("Failed to link uploaded blob to patient record", err).WithTimeout(timedOut), record)
	}

	s.metrics.IncSubmission("success", "")
	s.logger.Info("Patient submitted", "patient_id", linked.ID)
	s.events.Emit(ctx, model.EventPatientSubmitted, model.PatientSubmittedEvent{
		PatientID: linked.ID,
		BlobURL:   url,
	})

	return &Result{Record: linked, RemoteURL: url, Input: input}, nil
}

// Get returns a stored patient record.
func (s *Service) Get(ctx context.Context, id string) (*model.PatientRecord, error) {
	rec, err := s.patients.GetPatient(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to get patient: %w", err))
	}
	return rec, nil
}

func (s *Service) upload(ctx context.Context, record *model.PatientRecord) (string, error) {
	uploadedAt := s.now().UTC()

	snapshot := model.NewPatientSnapshot(record, uploadedAt)
	if s.encryptor != nil {
		if err := s.seal(snapshot); err != nil {
			return "", err
		}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	start := time.Now()
	url, err := s.uploader.Upload(ctx, blobstore.Object{
		Name:        blobstore.PatientBlobName(record.ID, uploadedAt),
		ContentType: snapshotContentType,
		Data:        data,
		Metadata: map[string]string{
			"patientId":  record.ID,
			"uploadType": uploadType,
		},
	})
	s.metrics.ObserveCollaborator("uploader", "upload", start, err)
	return url, err
}

func (s *Service) seal(snapshot *model.PatientSnapshot) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"ssn", &snapshot.SSN},
		{"creditCard", &snapshot.CreditCard},
		{"cvv", &snapshot.CVV},
	}
	for _, f := range fields {
		sealed, err := security.EncryptString(s.encryptor, *f.value)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", f.name, err)
		}
		*f.value = sealed
		snapshot.Encrypted = append(snapshot.Encrypted, f.name)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, stageErr *apperrors.StageError, partial *model.PatientRecord) error {
	s.metrics.IncSubmission("failure", string(stageErr.Stage))

	failed := model.PatientSubmissionFailedEvent{
		Stage:    string(stageErr.Stage),
		Message:  stageErr.Message,
		TimedOut: stageErr.TimedOut,
	}
	fields := []interface{}{"stage", stageErr.Stage, "timed_out", stageErr.TimedOut}
	if partial != nil {
		failed.PatientID = partial.ID
		fields = append(fields, "patient_id", partial.ID)
	}
	s.logger.Error(stageErr, "Patient submission failed", fields...)
	s.events.Emit(ctx, model.EventPatientSubmissionFailed, failed)

	return &Error{StageError: stageErr, PartialRecord: partial}
}

// callWithTimeout runs fn under its own deadline and reports whether a
// failure was caused by that deadline expiring.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(callCtx)
	if err != nil {
		return v, errors.Is(callCtx.Err(), context.DeadlineExceeded), err
	}
	return v, false, nil
}
