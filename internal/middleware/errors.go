package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/response"
)

// ErrorLogger logs the errors handlers attached with c.Error.
func ErrorLogger(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		c.Next()
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", response.RequestID(c)).
				Str("method", c.Request.Method).
				Str("path", c.FullPath()).
				Int("status", c.Writer.Status()).
				Msg("Request failed")
		}
	}
}
