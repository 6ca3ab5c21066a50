package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/repository"
)

// RoleSyncQueueKey is the list the role-sync workers pop from.
const RoleSyncQueueKey = "jobs:role-sync"

// RedisRoleSyncQueue pushes role-sync jobs onto a Redis list.
type RedisRoleSyncQueue struct {
	client redis.UniversalClient
	key    string
}

var _ repository.RoleSyncQueue = (*RedisRoleSyncQueue)(nil)

// NewRedisRoleSyncQueue constructs the queue on the default list key.
func NewRedisRoleSyncQueue(client redis.UniversalClient) *RedisRoleSyncQueue {
	return &RedisRoleSyncQueue{client: client, key: RoleSyncQueueKey}
}

// Enqueue appends job to the tail of the list.
func (q *RedisRoleSyncQueue) Enqueue(ctx context.Context, job domain.RoleSyncJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal role sync job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue role sync job: %w", err)
	}
	return nil
}
