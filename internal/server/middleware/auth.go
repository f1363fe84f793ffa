package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aperture-ai/gateway/internal/tenant"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// Auth checks for a valid Bearer token in the Authorization header against
// the configured key set and stamps the tenant onto the request context.
func Auth(staticKeys []string) gin.HandlerFunc {
	keys := make(map[string]bool, len(staticKeys))
	for _, k := range staticKeys {
		keys[k] = true
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, openai.UnauthorizedError("Missing Authorization header"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWith(c, openai.UnauthorizedError("Invalid Authorization header format"))
			return
		}

		if !keys[parts[1]] {
			abortWith(c, openai.UnauthorizedError("Invalid API key"))
			return
		}

		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			tenantID = "default"
		}
		c.Request = c.Request.WithContext(tenant.WithID(c.Request.Context(), tenantID))

		c.Next()
	}
}

func abortWith(c *gin.Context, err *openai.Error) {
	c.AbortWithStatusJSON(err.Status, err.Envelope())
}

// CORS allows browser clients to reach the API from any origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Tenant-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
