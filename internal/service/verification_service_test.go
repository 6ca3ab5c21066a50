package service_test

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/service"
	"github.com/smallbiznis/guildgate/internal/wallet"
)

type testWallet struct {
	key     *secp256k1.PrivateKey
	address string
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	h := sha3.NewLegacyKeccak256()
	h.Write(key.PubKey().SerializeUncompressed()[1:])
	return testWallet{key: key, address: "0x" + hex.EncodeToString(h.Sum(nil)[12:])}
}

func (w testWallet) sign(message string) string {
	compact := ecdsa.SignCompact(w.key, wallet.HashPersonalMessage(message), false)
	sig := append(append([]byte{}, compact[1:]...), compact[0])
	return "0x" + hex.EncodeToString(sig)
}

func newVerificationService(h *harness) *service.VerificationService {
	return service.NewVerificationService(h.projects, h.verifications, h.jobs, h.challenges, h.node, h.cfg, h.logger)
}

func TestCreateChallengeReturnsDashboardLink(t *testing.T) {
	h := newHarness(t)
	svc := newVerificationService(h)

	ticket, err := svc.CreateChallenge(context.Background(), "p1", "g1", "u9")
	require.NoError(t, err)
	require.NotEmpty(t, ticket.Token)
	require.Equal(t, "https://dash.example/verify/"+ticket.Token, ticket.VerifyURL)
}

func TestCreateChallengeRejectsUnknownProjectOrGuild(t *testing.T) {
	h := newHarness(t)
	svc := newVerificationService(h)
	ctx := context.Background()

	_, err := svc.CreateChallenge(ctx, "missing", "g1", "u9")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.CreateChallenge(ctx, "p1", "other-guild", "u9")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.CreateChallenge(ctx, "p1", "g1", "")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCompleteChallengePersistsAndEnqueues(t *testing.T) {
	h := newHarness(t)
	svc := newVerificationService(h)
	ctx := context.Background()
	w := newTestWallet(t)

	ticket, err := svc.CreateChallenge(ctx, "p1", "g1", "u9")
	require.NoError(t, err)
	view, err := svc.PeekChallenge(ctx, ticket.Token)
	require.NoError(t, err)
	require.Equal(t, "Apes", view.ProjectName)

	record, err := svc.CompleteChallenge(ctx, ticket.Token, w.address, w.sign(view.Message))
	require.NoError(t, err)
	require.NotZero(t, record.ID)
	require.Equal(t, "p1", record.ProjectID)
	require.Equal(t, "u9", record.UserDiscordID)
	require.Equal(t, w.address, record.WalletAddress)

	require.Len(t, h.verifications.saved, 1)
	require.Len(t, h.jobs.jobs, 1)
	require.Equal(t, "g1", h.jobs.jobs[0].GuildID)

	_, err = svc.CompleteChallenge(ctx, ticket.Token, w.address, w.sign(view.Message))
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.PeekChallenge(ctx, ticket.Token)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBadSignatureBurnsChallenge(t *testing.T) {
	h := newHarness(t)
	svc := newVerificationService(h)
	ctx := context.Background()
	owner := newTestWallet(t)
	impostor := newTestWallet(t)

	ticket, err := svc.CreateChallenge(ctx, "p1", "g1", "u9")
	require.NoError(t, err)
	view, err := svc.PeekChallenge(ctx, ticket.Token)
	require.NoError(t, err)

	_, err = svc.CompleteChallenge(ctx, ticket.Token, owner.address, impostor.sign(view.Message))
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = svc.CompleteChallenge(ctx, ticket.Token, owner.address, owner.sign(view.Message))
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, h.verifications.saved)
}

func TestMalformedInputDoesNotBurnChallenge(t *testing.T) {
	h := newHarness(t)
	svc := newVerificationService(h)
	ctx := context.Background()

	ticket, err := svc.CreateChallenge(ctx, "p1", "g1", "u9")
	require.NoError(t, err)

	_, err = svc.CompleteChallenge(ctx, ticket.Token, "not-a-wallet", "0xdead")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.PeekChallenge(ctx, ticket.Token)
	require.NoError(t, err)
}

func TestEnqueueFailureKeepsVerification(t *testing.T) {
	h := newHarness(t)
	h.jobs.err = errors.New("queue down")
	svc := newVerificationService(h)
	ctx := context.Background()
	w := newTestWallet(t)

	ticket, err := svc.CreateChallenge(ctx, "p1", "g1", "u9")
	require.NoError(t, err)
	view, err := svc.PeekChallenge(ctx, ticket.Token)
	require.NoError(t, err)

	_, err = svc.CompleteChallenge(ctx, ticket.Token, w.address, w.sign(view.Message))
	require.NoError(t, err)
	require.Len(t, h.verifications.saved, 1)
}
