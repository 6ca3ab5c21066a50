package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/guildgate/internal/adapter/cache"
	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/jwt"
	"github.com/smallbiznis/guildgate/internal/session"
)

type registryHarness struct {
	registry *session.Registry
	codec    *jwt.Codec
	redis    *miniredis.Miniredis
}

func newRegistryHarness(t *testing.T) *registryHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })

	codec, err := jwt.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return &registryHarness{registry: session.NewRegistry(store, codec), codec: codec, redis: mr}
}

func TestIssueThenValidate(t *testing.T) {
	h := newRegistryHarness(t)
	ctx := context.Background()

	pair, err := h.registry.Issue(ctx, "u1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := h.registry.Validate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)

	access, err := h.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u1", access.Subject)
	require.Equal(t, "alice", access.DisplayName)
	require.Equal(t, domain.TokenKindAccess, access.Kind)

	name, ok, err := h.registry.DisplayName(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice", name)
}

func TestRefreshRecordCarriesRefreshTTL(t *testing.T) {
	h := newRegistryHarness(t)
	pair, err := h.registry.Issue(context.Background(), "u1", "alice")
	require.NoError(t, err)
	claims, err := h.codec.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)

	require.Equal(t, 7*24*time.Hour, h.redis.TTL("session:refresh:"+claims.TokenID))
	require.Equal(t, 7*24*time.Hour, h.redis.TTL("session:name:u1"))
}

func TestConsumeSucceedsOnce(t *testing.T) {
	h := newRegistryHarness(t)
	ctx := context.Background()
	pair, err := h.registry.Issue(ctx, "u1", "alice")
	require.NoError(t, err)

	claims, err := h.registry.Consume(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)

	_, err = h.registry.Consume(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRevoked)
	_, err = h.registry.Validate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRevoked)
}

func TestConcurrentConsumeHasSingleWinner(t *testing.T) {
	h := newRegistryHarness(t)
	ctx := context.Background()
	pair, err := h.registry.Issue(ctx, "u1", "alice")
	require.NoError(t, err)

	const n = 50
	results := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.registry.Consume(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	var wins, revoked int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, domain.ErrRevoked)
		revoked++
	}
	require.Equal(t, 1, wins)
	require.Equal(t, n-1, revoked)
}

func TestRevokeIsIdempotent(t *testing.T) {
	h := newRegistryHarness(t)
	ctx := context.Background()
	pair, err := h.registry.Issue(ctx, "u1", "alice")
	require.NoError(t, err)
	claims, err := h.codec.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, h.registry.Revoke(ctx, claims.TokenID))
	require.NoError(t, h.registry.Revoke(ctx, claims.TokenID))
	require.NoError(t, h.registry.Revoke(ctx, "never-issued"))
	require.NoError(t, h.registry.Revoke(ctx, ""))

	_, err = h.registry.Validate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRevoked)
}

func TestRevokeTokenDeletesRecord(t *testing.T) {
	h := newRegistryHarness(t)
	ctx := context.Background()
	pair, err := h.registry.Issue(ctx, "u1", "alice")
	require.NoError(t, err)

	claims, err := h.registry.RevokeToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.False(t, h.redis.Exists("session:refresh:"+claims.TokenID))

	_, err = h.registry.Validate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRevoked)

	// Already revoked is still a success.
	_, err = h.registry.RevokeToken(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = h.registry.RevokeToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestExpiredRecordIsRevoked(t *testing.T) {
	h := newRegistryHarness(t)
	ctx := context.Background()
	pair, err := h.registry.Issue(ctx, "u1", "alice")
	require.NoError(t, err)

	// The record expires in the store while the signature is still within its lifetime.
	claims, err := h.codec.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	h.redis.Del("session:refresh:" + claims.TokenID)

	_, err = h.registry.Consume(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRevoked)
}

func TestInvalidSignatureIsNotRevoked(t *testing.T) {
	h := newRegistryHarness(t)
	ctx := context.Background()
	pair, err := h.registry.Issue(ctx, "u1", "alice")
	require.NoError(t, err)

	_, err = h.registry.Validate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = h.registry.Consume(ctx, pair.RefreshToken+"x")
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	// A rejected signature must not burn the real record.
	_, err = h.registry.Validate(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestStoreFailureSurfaces(t *testing.T) {
	h := newRegistryHarness(t)
	ctx := context.Background()
	pair, err := h.registry.Issue(ctx, "u1", "alice")
	require.NoError(t, err)
	h.redis.Close()

	_, err = h.registry.Consume(ctx, pair.RefreshToken)
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrRevoked)
}
