// Package session manages refresh-token identities and OAuth state values in
// the ephemeral store.
//
// A refresh token is valid only while both its signature verifies and its
// store record exists. The record is keyed by the token's jti and holds the
// subject; rotation claims it with a single GetAndDelete so a captured token
// cannot be replayed, even by requests racing on separate processes.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/jwt"
	"github.com/smallbiznis/guildgate/internal/repository"
)

const (
	refreshKeyPrefix = "session:refresh:"
	nameKeyPrefix    = "session:name:"
)

// Registry issues, validates, consumes and revokes refresh tokens.
type Registry struct {
	store repository.EphemeralStore
	codec *jwt.Codec
}

// NewRegistry wires a registry over store and codec.
func NewRegistry(store repository.EphemeralStore, codec *jwt.Codec) *Registry {
	return &Registry{store: store, codec: codec}
}

// Issue mints a token pair and records the refresh token's id. The record and
// the signed strings are not written atomically; a crash in between leaves a
// refresh token that simply fails validation.
func (r *Registry) Issue(ctx context.Context, subject, displayName string) (domain.TokenPair, error) {
	tokenID := uuid.NewString()

	access, err := r.codec.IssueAccessToken(subject, displayName)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := r.codec.IssueRefreshToken(subject, tokenID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	ttl := r.codec.RefreshTTL()
	if err := r.store.Set(ctx, refreshKey(tokenID), subject, ttl); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	if err := r.store.Set(ctx, nameKey(subject), displayName, ttl); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store display name: %w", err)
	}

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Validate checks the signature and that the store still holds the token's record.
func (r *Registry) Validate(ctx context.Context, refreshToken string) (domain.RefreshClaims, error) {
	claims, err := r.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return domain.RefreshClaims{}, err
	}
	subject, ok, err := r.store.Get(ctx, refreshKey(claims.TokenID))
	if err != nil {
		return domain.RefreshClaims{}, fmt.Errorf("load refresh token: %w", err)
	}
	if !ok || subject != claims.Subject {
		return domain.RefreshClaims{}, domain.ErrRevoked
	}
	return claims, nil
}

// Consume validates the token and claims its record in one atomic store step.
// Exactly one of any number of concurrent callers succeeds.
func (r *Registry) Consume(ctx context.Context, refreshToken string) (domain.RefreshClaims, error) {
	claims, err := r.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return domain.RefreshClaims{}, err
	}
	subject, ok, err := r.store.GetAndDelete(ctx, refreshKey(claims.TokenID))
	if err != nil {
		return domain.RefreshClaims{}, fmt.Errorf("consume refresh token: %w", err)
	}
	if !ok || subject != claims.Subject {
		return domain.RefreshClaims{}, domain.ErrRevoked
	}
	return claims, nil
}

// Revoke deletes the record for tokenID. Revoking an unknown id is a no-op.
func (r *Registry) Revoke(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	if err := r.store.Delete(ctx, refreshKey(tokenID)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// DisplayName returns the cached display name recorded at the last issue.
func (r *Registry) DisplayName(ctx context.Context, subject string) (string, bool, error) {
	name, ok, err := r.store.Get(ctx, nameKey(subject))
	if err != nil {
		return "", false, fmt.Errorf("load display name: %w", err)
	}
	return name, ok, nil
}

// RevokeToken verifies refreshToken and deletes its record. It returns the
// verified claims so callers can attribute the revocation.
func (r *Registry) RevokeToken(ctx context.Context, refreshToken string) (domain.RefreshClaims, error) {
	claims, err := r.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return domain.RefreshClaims{}, err
	}
	if err := r.Revoke(ctx, claims.TokenID); err != nil {
		return claims, err
	}
	return claims, nil
}

func refreshKey(tokenID string) string {
	return refreshKeyPrefix + tokenID
}

func nameKey(subject string) string {
	return nameKeyPrefix + subject
}
