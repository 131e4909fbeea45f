package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/validator"
)

// ErrorBody is the JSON shape of every failed API call.
type ErrorBody struct {
	Error    string                 `json:"error"`
	Stage    string                 `json:"stage,omitempty"`
	TimedOut bool                   `json:"timedOut,omitempty"`
	Fields   []validator.FieldError `json:"fields,omitempty"`
	Patient  interface{}            `json:"patient,omitempty"`
}

// RespondWithSuccess sends data as-is with 200.
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// NewErrorBody maps err onto a status code and body. prefix, when set, is
// prepended to the message the way the public API has always reported
// pipeline failures.
func NewErrorBody(err error, prefix string) (int, ErrorBody) {
	status := http.StatusInternalServerError
	body := ErrorBody{Error: err.Error()}

	var stageErr *apperrors.StageError
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &stageErr):
		status = stageErr.StatusCode()
		body.Stage = string(stageErr.Stage)
		body.TimedOut = stageErr.TimedOut
	case errors.As(err, &appErr):
		status = appErr.StatusCode()
		if status != http.StatusInternalServerError {
			body.Error = appErr.Message
			prefix = ""
		}
	}

	var verr *validator.Error
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}

	body.Error = prefix + body.Error
	return status, body
}

// RespondWithError sends the mapped error and aborts the chain.
func RespondWithError(c *gin.Context, err error, prefix string) {
	status, body := NewErrorBody(err, prefix)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// RespondWithMessage sends a fixed message with the given status.
func RespondWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: message})
}
