package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smallbiznis/guildgate/internal/domain"
)

// Compile-time interface assertions.
var (
	_ ProjectRepository      = (*PostgresProjectRepo)(nil)
	_ VerificationRepository = (*PostgresVerificationRepo)(nil)
)

// DBTX is the query surface shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const getProjectSQL = `
SELECT id, name, guild_id
FROM projects
WHERE id = $1`

// PostgresProjectRepo implements ProjectRepository.
type PostgresProjectRepo struct {
	db DBTX
}

func NewPostgresProjectRepo(db DBTX) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

func (r *PostgresProjectRepo) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRow(ctx, getProjectSQL, projectID).Scan(&p.ID, &p.Name, &p.GuildID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Project{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// A member re-verifying the same project replaces the previous wallet.
const upsertVerificationSQL = `
INSERT INTO verifications (id, project_id, guild_id, user_discord_id, wallet_address, verified_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (project_id, user_discord_id) DO UPDATE
SET wallet_address = EXCLUDED.wallet_address,
    guild_id = EXCLUDED.guild_id,
    verified_at = EXCLUDED.verified_at
RETURNING id, project_id, guild_id, user_discord_id, wallet_address, verified_at`

// PostgresVerificationRepo implements VerificationRepository.
type PostgresVerificationRepo struct {
	db DBTX
}

func NewPostgresVerificationRepo(db DBTX) *PostgresVerificationRepo {
	return &PostgresVerificationRepo{db: db}
}

func (r *PostgresVerificationRepo) SaveVerification(ctx context.Context, v domain.Verification) (domain.Verification, error) {
	var out domain.Verification
	err := r.db.QueryRow(ctx, upsertVerificationSQL,
		v.ID, v.ProjectID, v.GuildID, v.UserDiscordID, v.WalletAddress, v.VerifiedAt,
	).Scan(&out.ID, &out.ProjectID, &out.GuildID, &out.UserDiscordID, &out.WalletAddress, &out.VerifiedAt)
	if err != nil {
		return domain.Verification{}, fmt.Errorf("save verification: %w", err)
	}
	return out, nil
}
