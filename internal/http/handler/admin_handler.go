package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/guildgate/internal/service"
)

// AdminHandler serves operator-only routes.
type AdminHandler struct {
	Auth *service.AuthService
}

func NewAdminHandler(auth *service.AuthService) *AdminHandler {
	return &AdminHandler{Auth: auth}
}

// RevokeSession force-expires a refresh token by id.
func (h *AdminHandler) RevokeSession(c *gin.Context) {
	if err := h.Auth.RevokeSession(c.Request.Context(), c.Param("tokenID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports readiness based on the ephemeral store.
type HealthHandler struct {
	Store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{Store: store}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		zap.L().Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
