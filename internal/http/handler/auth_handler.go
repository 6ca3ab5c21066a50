package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/guildgate/internal/config"
	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/http/middleware"
	"github.com/smallbiznis/guildgate/internal/service"
	authsvc "github.com/smallbiznis/guildgate/internal/service/auth"
)

// AuthHandler serves login, refresh and logout.
type AuthHandler struct {
	Auth         *service.AuthService
	OAuth        authsvc.OAuthService
	DashboardURL string
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, oauth authsvc.OAuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, OAuth: oauth, DashboardURL: cfg.DashboardURL}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// DiscordLogin redirects the browser to Discord's consent page.
func (h *AuthHandler) DiscordLogin(c *gin.Context) {
	out, err := h.OAuth.StartAuthorization(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, out.AuthorizationURL)
}

// DiscordCallback completes the login and hands the tokens to the dashboard in
// the URL fragment, which browsers never send to servers.
func (h *AuthHandler) DiscordCallback(c *gin.Context) {
	if reason := strings.TrimSpace(c.Query("error")); reason != "" {
		h.redirectLoginError(c, "access_denied")
		return
	}

	session, err := h.OAuth.HandleCallback(c.Request.Context(), authsvc.OAuthCallbackInput{
		Code:  c.Query("code"),
		State: c.Query("state"),
	})
	if err != nil {
		e := classify(err)
		if e.status >= http.StatusInternalServerError {
			zap.L().Error("discord callback failed", zap.Error(err))
		}
		h.redirectLoginError(c, e.code)
		return
	}

	fragment := url.Values{}
	fragment.Set("accessToken", session.Tokens.AccessToken)
	fragment.Set("refreshToken", session.Tokens.RefreshToken)
	c.Redirect(http.StatusFound, h.DashboardURL+"/auth/callback#"+fragment.Encode())
}

func (h *AuthHandler) redirectLoginError(c *gin.Context, code string) {
	q := url.Values{}
	q.Set("error", code)
	c.Redirect(http.StatusFound, h.DashboardURL+"/login?"+q.Encode())
}

// Refresh rotates a refresh token into a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.ErrInvalidRequest)
		return
	}
	pair, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Logout revokes the presented refresh token. It always answers 200.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	h.Auth.Logout(c.Request.Context(), req.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me returns the caller's access token claims.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetAccessClaims(c)
	if !ok {
		respondError(c, errors.New("access claims missing from context"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":      claims.Subject,
		"displayName": claims.DisplayName,
		"expiresAt":   strconv.FormatInt(claims.ExpiresAt.Unix(), 10),
	})
}
