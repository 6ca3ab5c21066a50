package auth

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/guildgate/internal/adapter/discord"
	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/session"
)

// OAuthService defines the Discord login behaviors.
type OAuthService interface {
	StartAuthorization(ctx context.Context) (*StartAuthorizationOutput, error)
	HandleCallback(ctx context.Context, in OAuthCallbackInput) (*OAuthSession, error)
}

// StartAuthorizationOutput returns the prepared authorization URL.
type StartAuthorizationOutput struct {
	AuthorizationURL string
	State            string
}

// OAuthCallbackInput captures callback query parameters.
type OAuthCallbackInput struct {
	Code  string
	State string
}

// OAuthSession is the authenticated guildgate session.
type OAuthSession struct {
	UserID      string
	DisplayName string
	Tokens      domain.TokenPair
}

// SessionIssuer mints token pairs for authenticated users.
type SessionIssuer interface {
	Login(ctx context.Context, subject, displayName string) (domain.TokenPair, error)
}

type oauthService struct {
	states   *session.StateGuard
	provider discord.Client
	sessions SessionIssuer
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewOAuthService wires the OAuth service implementation.
func NewOAuthService(states *session.StateGuard, provider discord.Client, sessions SessionIssuer, logger *zap.Logger) OAuthService {
	return &oauthService{
		states:   states,
		provider: provider,
		sessions: sessions,
		logger:   logger,
		tracer:   otel.Tracer("github.com/smallbiznis/guildgate/internal/service/auth"),
	}
}

func (s *oauthService) StartAuthorization(ctx context.Context) (*StartAuthorizationOutput, error) {
	ctx, span := s.tracer.Start(ctx, "OAuthService.StartAuthorization")
	defer span.End()

	state, err := s.states.Issue(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue state: %w", err)
	}
	return &StartAuthorizationOutput{
		AuthorizationURL: s.provider.AuthCodeURL(state),
		State:            state,
	}, nil
}

func (s *oauthService) HandleCallback(ctx context.Context, in OAuthCallbackInput) (*OAuthSession, error) {
	ctx, span := s.tracer.Start(ctx, "OAuthService.HandleCallback")
	defer span.End()

	if strings.TrimSpace(in.Code) == "" {
		return nil, domain.ErrInvalidRequest
	}
	ok, err := s.states.Redeem(ctx, in.State)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidState
	}

	user, err := s.provider.Exchange(ctx, in.Code)
	if err != nil {
		span.RecordError(err)
		s.log().Warn("discord exchange failed", zap.Error(err))
		return nil, fmt.Errorf("%w: provider exchange failed", domain.ErrUnauthorized)
	}

	name := user.DisplayName()
	pair, err := s.sessions.Login(ctx, user.ID, name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &OAuthSession{UserID: user.ID, DisplayName: name, Tokens: pair}, nil
}

func (s *oauthService) log() *zap.Logger {
	if s.logger != nil {
		return s.logger
	}
	return zap.L()
}
