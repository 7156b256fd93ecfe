package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/httputil"
)

// ErrorHandler logs errors attached to the context and answers with the last
// one when the handler did not write a response itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last().Err
		if _, ok := apperrors.As(lastErr); !ok {
			lastErr = apperrors.Internal(lastErr)
		}
		httputil.RespondWithError(c, lastErr)
	}
}
