package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/session"
)

// fallbackDisplayName is used on refresh when the name cache has expired.
const fallbackDisplayName = "unknown"

// AuthService encapsulates session issuance, rotation and revocation.
type AuthService struct {
	sessions *session.Registry
	instrumented
}

// NewAuthService wires dependencies.
func NewAuthService(sessions *session.Registry, logger *zap.Logger) *AuthService {
	return &AuthService{sessions: sessions, instrumented: newInstrumented(logger)}
}

// Login issues a fresh token pair for an authenticated Discord user.
func (s *AuthService) Login(ctx context.Context, subject, displayName string) (domain.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	if strings.TrimSpace(subject) == "" {
		return domain.TokenPair{}, domain.ErrInvalidRequest
	}
	pair, err := s.sessions.Issue(ctx, subject, displayName)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, err
	}
	s.audit("login.success", "user_id", subject)
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued. A replayed token fails with ErrRevoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	if strings.TrimSpace(refreshToken) == "" {
		return domain.TokenPair{}, domain.ErrInvalidRequest
	}
	claims, err := s.sessions.Consume(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, err
	}

	name, ok, err := s.sessions.DisplayName(ctx, claims.Subject)
	if err != nil || !ok {
		s.log().Warn("display name cache miss on refresh",
			zap.String("user_id", claims.Subject),
			zap.Error(err),
		)
		name = fallbackDisplayName
	}

	pair, err := s.sessions.Issue(ctx, claims.Subject, name)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, err
	}
	s.audit("refresh.success", "user_id", claims.Subject, "rotated_token_id", claims.TokenID)
	return pair, nil
}

// Logout revokes the refresh token if it can be read. It never fails: an
// unreadable token has nothing to revoke and store errors are only logged.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	claims, err := s.sessions.RevokeToken(ctx, refreshToken)
	if errors.Is(err, domain.ErrInvalidToken) {
		return
	}
	if err != nil {
		span.RecordError(err)
		s.log().Error("logout revoke failed", zap.String("user_id", claims.Subject), zap.Error(err))
		return
	}
	s.audit("logout", "user_id", claims.Subject)
}

// RevokeSession deletes a refresh token record by id.
func (s *AuthService) RevokeSession(ctx context.Context, tokenID string) error {
	ctx, span := s.startSpan(ctx, "AuthService.RevokeSession")
	defer span.End()

	if strings.TrimSpace(tokenID) == "" {
		return domain.ErrInvalidRequest
	}
	if err := s.sessions.Revoke(ctx, tokenID); err != nil {
		span.RecordError(err)
		return err
	}
	s.audit("session.revoked", "token_id", tokenID)
	return nil
}
