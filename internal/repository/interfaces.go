package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/guildgate/internal/domain"
)

// EphemeralStore is the TTL-bound key-value store that owns every session and
// one-time value. Implementations must make GetAndDelete a single atomic
// server-side step so that concurrent callers, in any process, never both
// observe the same value.
type EphemeralStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	GetAndDelete(ctx context.Context, key string) (string, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// ProjectRepository exposes the project rows the verification flow consults.
type ProjectRepository interface {
	GetProject(ctx context.Context, projectID string) (domain.Project, error)
}

// VerificationRepository persists completed wallet verifications.
type VerificationRepository interface {
	SaveVerification(ctx context.Context, v domain.Verification) (domain.Verification, error)
}

// RoleSyncQueue hands role-sync work to the worker process.
type RoleSyncQueue interface {
	Enqueue(ctx context.Context, job domain.RoleSyncJob) error
}
