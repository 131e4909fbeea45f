package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
)

// ErrorLogger logs errors attached with c.Error after the handler has
// written its response.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, e := range c.Errors {
			event := log.Error().
				Err(e.Err).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Int("status", c.Writer.Status())

			var stageErr *apperrors.StageError
			if errors.As(e.Err, &stageErr) {
				event = event.Str("stage", string(stageErr.Stage)).Bool("timed_out", stageErr.TimedOut)
			}
			event.Msg("Request error")
		}
	}
}
