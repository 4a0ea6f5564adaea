package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowHeaders = "Authorization, Content-Type, X-Request-Id"
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// CORS reflects allowed origins. An empty allowlist reflects every origin,
// which is the local development mode.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimSpace(origin)] = struct{}{}
	}

	return func(c *gin.Context) {
		header := c.Writer.Header()
		if origin := c.Request.Header.Get("Origin"); origin != "" {
			_, ok := allowed[origin]
			if ok || len(allowed) == 0 {
				header.Set("Access-Control-Allow-Origin", origin)
			}
			header.Set("Vary", "Origin")
		}
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		header.Set("Access-Control-Allow-Methods", corsAllowMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
