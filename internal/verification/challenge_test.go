package verification_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/guildgate/internal/adapter/cache"
	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/verification"
)

func newChallenges(t *testing.T) (*verification.Challenges, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	return verification.NewChallenges(store), mr
}

func TestChallengeLifecycle(t *testing.T) {
	challenges, mr := newChallenges(t)
	ctx := context.Background()

	token, err := challenges.Create(ctx, "p1", "Apes", "g1", "u9")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, 15*time.Minute, mr.TTL("verify:challenge:"+token))

	first, err := challenges.Peek(ctx, token)
	require.NoError(t, err)
	second, err := challenges.Peek(ctx, token)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "p1", first.ProjectID)
	require.Equal(t, "g1", first.GuildID)
	require.Equal(t, "u9", first.UserDiscordID)
	require.Len(t, first.Nonce, 32)

	done, err := challenges.Complete(ctx, token)
	require.NoError(t, err)
	require.Equal(t, first, done)

	_, err = challenges.Complete(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = challenges.Peek(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChallengeExpires(t *testing.T) {
	challenges, mr := newChallenges(t)
	ctx := context.Background()

	token, err := challenges.Create(ctx, "p1", "Apes", "g1", "u9")
	require.NoError(t, err)
	mr.FastForward(15*time.Minute + time.Second)

	_, err = challenges.Peek(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = challenges.Complete(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChallengeCompletesOnceUnderContention(t *testing.T) {
	challenges, _ := newChallenges(t)
	ctx := context.Background()
	token, err := challenges.Create(ctx, "p1", "Apes", "g1", "u9")
	require.NoError(t, err)

	const n = 20
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = challenges.Complete(ctx, token)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
	require.Equal(t, 1, wins)
}

func TestUnknownTokens(t *testing.T) {
	challenges, _ := newChallenges(t)
	ctx := context.Background()

	for _, token := range []string{"", "   ", "missing"} {
		_, err := challenges.Peek(ctx, token)
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = challenges.Complete(ctx, token)
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
}

func TestMessageNamesProjectUserAndNonce(t *testing.T) {
	p := verification.Payload{
		ProjectName:   "Apes",
		GuildID:       "g1",
		UserDiscordID: "u9",
		Nonce:         "abc123",
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	msg := p.Message()
	require.True(t, strings.HasPrefix(msg, "Verify wallet ownership for Apes"))
	require.Contains(t, msg, "Discord user: u9")
	require.Contains(t, msg, "Nonce: abc123")
	require.Contains(t, msg, "2026-03-01T12:00:00Z")
}
