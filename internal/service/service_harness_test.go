package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/guildgate/internal/adapter/cache"
	"github.com/smallbiznis/guildgate/internal/config"
	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/jwt"
	"github.com/smallbiznis/guildgate/internal/session"
	"github.com/smallbiznis/guildgate/internal/verification"
)

type harness struct {
	redis         *miniredis.Miniredis
	store         *cache.RedisStore
	codec         *jwt.Codec
	registry      *session.Registry
	challenges    *verification.Challenges
	projects      *memoryProjectRepo
	verifications *memoryVerificationRepo
	jobs          *memoryQueue
	node          *snowflake.Node
	cfg           config.Config
	logger        *zap.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })

	codec, err := jwt.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &harness{
		redis:         mr,
		store:         store,
		codec:         codec,
		registry:      session.NewRegistry(store, codec),
		challenges:    verification.NewChallenges(store),
		projects:      &memoryProjectRepo{projects: map[string]domain.Project{"p1": {ID: "p1", Name: "Apes", GuildID: "g1"}}},
		verifications: &memoryVerificationRepo{},
		jobs:          &memoryQueue{},
		node:          node,
		cfg:           config.Config{DashboardURL: "https://dash.example"},
		logger:        zap.NewNop(),
	}
}

type memoryProjectRepo struct {
	projects map[string]domain.Project
}

func (m *memoryProjectRepo) GetProject(_ context.Context, projectID string) (domain.Project, error) {
	p, ok := m.projects[projectID]
	if !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	return p, nil
}

type memoryVerificationRepo struct {
	mu    sync.Mutex
	saved []domain.Verification
}

func (m *memoryVerificationRepo) SaveVerification(_ context.Context, v domain.Verification) (domain.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, v)
	return v, nil
}

type memoryQueue struct {
	mu   sync.Mutex
	jobs []domain.RoleSyncJob
	err  error
}

func (m *memoryQueue) Enqueue(_ context.Context, job domain.RoleSyncJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}
