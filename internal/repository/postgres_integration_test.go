//go:build integration

package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	guild_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS verifications (
	id BIGINT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	guild_id TEXT NOT NULL,
	user_discord_id TEXT NOT NULL,
	wallet_address TEXT NOT NULL,
	verified_at TIMESTAMPTZ NOT NULL,
	UNIQUE (project_id, user_discord_id)
);`

func TestPostgresRepositories(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO projects (id, name, guild_id) VALUES ('it-p1', 'Apes', 'g1') ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM verifications WHERE project_id = 'it-p1'`)
		_, _ = pool.Exec(ctx, `DELETE FROM projects WHERE id = 'it-p1'`)
	})

	projects := repository.NewPostgresProjectRepo(pool)
	p, err := projects.GetProject(ctx, "it-p1")
	require.NoError(t, err)
	require.Equal(t, "g1", p.GuildID)

	_, err = projects.GetProject(ctx, "it-missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	verifications := repository.NewPostgresVerificationRepo(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	first, err := verifications.SaveVerification(ctx, domain.Verification{
		ID: 1, ProjectID: "it-p1", GuildID: "g1", UserDiscordID: "u9", WalletAddress: "0xaaa", VerifiedAt: now,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ID)

	second, err := verifications.SaveVerification(ctx, domain.Verification{
		ID: 2, ProjectID: "it-p1", GuildID: "g1", UserDiscordID: "u9", WalletAddress: "0xbbb", VerifiedAt: now,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), second.ID)
	require.Equal(t, "0xbbb", second.WalletAddress)
}
