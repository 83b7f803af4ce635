package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/hackledger/core"
)

// statusFor maps domain errors to a status code and a client-facing message
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, core.ErrChallengeExpired):
		return http.StatusUnauthorized, "Challenge expired"
	case errors.Is(err, core.ErrAlreadyRegistered):
		return http.StatusConflict, "Address already registered"
	case errors.Is(err, core.ErrNotRegistered):
		return http.StatusNotFound, "Address not registered"
	case errors.Is(err, core.ErrInvalidRole):
		return http.StatusBadRequest, "Invalid role"
	case errors.Is(err, core.ErrInvalidChallenge):
		return http.StatusBadRequest, "Invalid challenge message"
	case errors.Is(err, core.ErrInvalidAddress):
		return http.StatusBadRequest, "Invalid address"
	case errors.Is(err, core.ErrSessionExpired):
		return http.StatusUnauthorized, "Session expired"
	case errors.Is(err, core.ErrSessionRevoked):
		return http.StatusUnauthorized, "Session has been revoked"
	case errors.Is(err, core.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, core.ErrLedgerUnreachable):
		return http.StatusServiceUnavailable, "Ledger unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func abortWithError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
