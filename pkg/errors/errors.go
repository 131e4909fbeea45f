package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrInternal
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

// Stage names a step of a multi-step pipeline that can fail on its own.
type Stage string

const (
	StageGeneration Stage = "generation"
	StageValidation Stage = "validation"
	StageStorage    Stage = "storage"
	StageUpload     Stage = "upload"
)

// StageError reports the failure of a single pipeline step. TimedOut is set
// when the step was abandoned because its deadline expired rather than
// because the collaborator rejected the call.
type StageError struct {
	Stage    Stage  `json:"stage"`
	Message  string `json:"message"`
	TimedOut bool   `json:"timedOut,omitempty"`
	Err      error  `json:"-"`
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StatusCode always reports 500: a failed step is a server-side failure.
func (e *StageError) StatusCode() int {
	return http.StatusInternalServerError
}

func newStage(stage Stage, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Err: err}
}

// Generation is returned when the data generation collaborator fails or
// produces unusable output.
func Generation(message string, err error) *StageError {
	return newStage(StageGeneration, message, err)
}

// Validation is returned when generated data does not match the input schema.
func Validation(message string, err error) *StageError {
	return newStage(StageValidation, message, err)
}

// Storage is returned when the record store fails.
func Storage(message string, err error) *StageError {
	return newStage(StageStorage, message, err)
}

// Upload is returned when the blob upload collaborator fails.
func Upload(message string, err error) *StageError {
	return newStage(StageUpload, message, err)
}

// WithTimeout marks the error as caused by an expired deadline.
func (e *StageError) WithTimeout(timedOut bool) *StageError {
	e.TimedOut = timedOut
	return e
}
