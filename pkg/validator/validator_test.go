package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contact struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(&contact{Email: "not-an-email"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []FieldError{
		{Field: "name", Message: "is required"},
		{Field: "email", Message: "must be a valid email"},
	}, verr.Fields)
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, New().Validate(&contact{Name: "Jane", Email: "jane@example.com"}))
}

func TestDecode_TypeMismatchIsFieldError(t *testing.T) {
	var c contact
	err := New().Decode(map[string]interface{}{"name": 42, "email": "jane@example.com"}, &c)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "name", verr.Fields[0].Field)
	assert.Contains(t, verr.Error(), "name: expected string, got number")
}

func TestDecode_ValidPayload(t *testing.T) {
	var c contact
	err := New().Decode(map[string]interface{}{"name": "Jane", "email": "jane@example.com", "extra": true}, &c)

	require.NoError(t, err)
	assert.Equal(t, contact{Name: "Jane", Email: "jane@example.com"}, c)
}
