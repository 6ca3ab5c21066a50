package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/guildgate/internal/config"
	"github.com/smallbiznis/guildgate/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/guildgate/internal/http/middleware"
	"github.com/smallbiznis/guildgate/internal/middleware"
)

// RouterParams collects everything the router mounts.
type RouterParams struct {
	fx.In

	Config        config.Config
	Logger        *zap.Logger
	Auth          *handler.AuthHandler
	Verifications *handler.VerificationHandler
	Admin         *handler.AdminHandler
	Health        *handler.HealthHandler
	Bearer        *httpmiddleware.Auth
	RateLimiter   *middleware.RateLimiter `optional:"true"`
}

// NewRouter wires Gin routes and middleware.
func NewRouter(p RouterParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(p.Logger))
	r.Use(p.RateLimiter.Handler())
	r.Use(middleware.CORS(p.Config))
	r.Use(otelgin.Middleware(p.Config.ServiceName))

	r.GET("/healthz", p.Health.Healthz)

	auth := r.Group("/auth")
	{
		auth.GET("/discord/login", p.Auth.DiscordLogin)
		auth.GET("/discord/callback", p.Auth.DiscordCallback)
		auth.POST("/refresh", p.Auth.Refresh)
		auth.POST("/logout", p.Auth.Logout)
		auth.GET("/me", p.Bearer.RequireAccessToken, p.Auth.Me)
	}

	bot := r.Group("/bot", httpmiddleware.SharedSecret(httpmiddleware.BotPrefix, p.Config.BotSecret))
	{
		bot.POST("/verifications", p.Verifications.Create)
	}

	verifications := r.Group("/verifications")
	{
		verifications.GET("/:token", p.Verifications.Peek)
		verifications.POST("/:token/complete", p.Verifications.Complete)
	}

	admin := r.Group("/admin", httpmiddleware.SharedSecret(httpmiddleware.AdminPrefix, p.Config.AdminSecret))
	{
		admin.DELETE("/sessions/:tokenID", p.Admin.RevokeSession)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Unknown route " + strings.TrimSpace(c.Request.URL.Path)})
	})

	return r
}
