package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/service"
)

const sessionKey = "session"

// AuthMiddleware creates middleware that validates bearer session tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		session, err := authService.ValidateSession(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(sessionKey, session)

		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
			logger.Error("request failed", attrs...)
			return
		}
		logger.Debug("request", attrs...)
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// sessionFrom returns the session set by AuthMiddleware
func sessionFrom(c *gin.Context) *core.Session {
	return c.MustGet(sessionKey).(*core.Session)
}
