package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/guildgate/internal/domain"
)

type apiError struct {
	status      int
	code        string
	description string
}

// classify maps domain errors onto the HTTP surface. Token failures share one
// description so callers cannot tell a bad signature from an expired token.
func classify(err error) apiError {
	switch {
	case errors.Is(err, domain.ErrRevoked):
		return apiError{http.StatusUnauthorized, "invalid_grant", "invalid refresh token"}
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidToken):
		return apiError{http.StatusUnauthorized, "unauthorized", "Authentication required."}
	case errors.Is(err, domain.ErrInvalidSignature):
		return apiError{http.StatusForbidden, "invalid_signature", "Signature does not match the wallet."}
	case errors.Is(err, domain.ErrForbidden):
		return apiError{http.StatusForbidden, "forbidden", "Forbidden."}
	case errors.Is(err, domain.ErrNotFound):
		return apiError{http.StatusNotFound, "not_found", "Not found or expired."}
	case errors.Is(err, domain.ErrInvalidState):
		return apiError{http.StatusBadRequest, "invalid_state", "Login session expired, please try again."}
	case errors.Is(err, domain.ErrInvalidRequest):
		return apiError{http.StatusBadRequest, "invalid_request", "Invalid request."}
	default:
		return apiError{http.StatusInternalServerError, "server_error", "Internal server error."}
	}
}

func respondError(c *gin.Context, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(e.status, gin.H{"error": e.code, "error_description": e.description})
}
