package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// FieldError describes one field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when a value does not satisfy its schema.
type Error struct {
	Fields []FieldError `json:"fields"`
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
	Decode(src interface{}, dst interface{}) error
}

type validator struct {
	v *playground.Validate
}

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
}

// New returns a validator that reports fields by their json names.
func New() Validator {
	v := playground.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &validator{v: v}
}

// Validate checks struct tags on obj.
func (v *validator) Validate(obj interface{}) error {
	err := v.v.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Error{}
	for _, e := range verrs {
		msg, ok := messages[e.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed on %q", e.Tag())
		}
		out.Fields = append(out.Fields, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}

// Decode converts an untyped value into dst and validates the result. Type
// mismatches are reported as field errors, not as decode failures.
func (v *validator) Decode(src interface{}, dst interface{}) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode source: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &Error{Fields: []FieldError{{
				Field:   typeErr.Field,
				Message: fmt.Sprintf("expected %s, got %s", typeErr.Type.Kind(), typeErr.Value),
			}}}
		}
		return fmt.Errorf("decode: %w", err)
	}

	return v.Validate(dst)
}
