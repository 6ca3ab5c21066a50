package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/service"
)

// VerificationHandler serves the bot and holder sides of wallet verification.
type VerificationHandler struct {
	Verifications *service.VerificationService
}

func NewVerificationHandler(verifications *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{Verifications: verifications}
}

type createChallengeRequest struct {
	ProjectID     string `json:"projectId" binding:"required"`
	GuildID       string `json:"guildId" binding:"required"`
	UserDiscordID string `json:"userDiscordId" binding:"required"`
}

type completeChallengeRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

// Create is called by the bot when a member runs the verify command.
func (h *VerificationHandler) Create(c *gin.Context) {
	var req createChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.ErrInvalidRequest)
		return
	}
	ticket, err := h.Verifications.CreateChallenge(c.Request.Context(), req.ProjectID, req.GuildID, req.UserDiscordID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// Peek shows the challenge and the message to sign.
func (h *VerificationHandler) Peek(c *gin.Context) {
	view, err := h.Verifications.PeekChallenge(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Complete consumes the challenge with a wallet signature.
func (h *VerificationHandler) Complete(c *gin.Context) {
	var req completeChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.ErrInvalidRequest)
		return
	}
	record, err := h.Verifications.CompleteChallenge(c.Request.Context(), c.Param("token"), req.WalletAddress, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verified":      true,
		"projectId":     record.ProjectID,
		"guildId":       record.GuildID,
		"walletAddress": record.WalletAddress,
		"verifiedAt":    record.VerifiedAt,
	})
}
