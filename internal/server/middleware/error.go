package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aperture-ai/gateway/internal/logger"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// ErrorHandler converts errors collected on the gin context into the wire
// error envelope. Internal detail stays in the logs; the client sees the
// safe message only.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		if c.Writer.Written() {
			return
		}

		apiErr := openai.FromError(c.Errors.Last().Err)
		if apiErr.Log != nil {
			logger.Error("Request failed",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", apiErr.Status),
				zap.Error(apiErr.Log),
			)
		}

		c.JSON(apiErr.Status, apiErr.Envelope())
		c.Abort()
	}
}
