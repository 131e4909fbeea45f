// Package generation talks to the language model that produces synthetic
// patient payloads and chat replies.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/intake-api/internal/model"
)

var (
	// ErrNotConfigured is returned on every call when no API key is set.
	ErrNotConfigured = errors.New("generation service API key not configured")
	// ErrMalformedOutput is returned when the model output is not a JSON object.
	ErrMalformedOutput = errors.New("generation service returned malformed output")
)

// Generator produces synthetic data.
type Generator interface {
	// GeneratePatient returns the raw payload. It is not checked for
	// required fields or validated.
	GeneratePatient(ctx context.Context) (model.PatientPayload, error)
	// ChatReply answers message. chatContext may be empty.
	ChatReply(ctx context.Context, message, chatContext string) (string, error)
}

// MissingFieldError names the first required field absent from a payload.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// CheckRequiredFields reports the first required field that is absent or
// holds an empty value (nil, "", false or 0).
func CheckRequiredFields(payload model.PatientPayload) error {
	for _, field := range model.RequiredPatientFields {
		if isEmpty(payload[field]) {
			return &MissingFieldError{Field: field}
		}
	}
	return nil
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	default:
		return false
	}
}
