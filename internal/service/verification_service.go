package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/smallbiznis/guildgate/internal/config"
	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/repository"
	"github.com/smallbiznis/guildgate/internal/verification"
	"github.com/smallbiznis/guildgate/internal/wallet"
)

// ChallengeTicket is returned to the bot, which DMs the link to the member.
type ChallengeTicket struct {
	Token     string `json:"token"`
	VerifyURL string `json:"verifyUrl"`
}

// ChallengeView is what the dashboard renders before asking the wallet to sign.
type ChallengeView struct {
	ProjectID     string    `json:"projectId"`
	ProjectName   string    `json:"projectName"`
	GuildID       string    `json:"guildId"`
	UserDiscordID string    `json:"userDiscordId"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"createdAt"`
}

// VerificationService links wallets to Discord members through signed challenges.
type VerificationService struct {
	projects      repository.ProjectRepository
	verifications repository.VerificationRepository
	jobs          repository.RoleSyncQueue
	challenges    *verification.Challenges
	node          *snowflake.Node
	dashboardURL  string
	now           func() time.Time
	instrumented
}

// NewVerificationService wires dependencies.
func NewVerificationService(
	projects repository.ProjectRepository,
	verifications repository.VerificationRepository,
	jobs repository.RoleSyncQueue,
	challenges *verification.Challenges,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) *VerificationService {
	return &VerificationService{
		projects:      projects,
		verifications: verifications,
		jobs:          jobs,
		challenges:    challenges,
		node:          node,
		dashboardURL:  cfg.DashboardURL,
		now:           time.Now,
		instrumented:  newInstrumented(logger),
	}
}

// CreateChallenge starts a verification for a member of the project's guild.
func (s *VerificationService) CreateChallenge(ctx context.Context, projectID, guildID, userDiscordID string) (ChallengeTicket, error) {
	ctx, span := s.startSpan(ctx, "VerificationService.CreateChallenge")
	defer span.End()

	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(guildID) == "" || strings.TrimSpace(userDiscordID) == "" {
		return ChallengeTicket{}, domain.ErrInvalidRequest
	}

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return ChallengeTicket{}, err
	}
	if project.GuildID != guildID {
		return ChallengeTicket{}, domain.ErrNotFound
	}

	token, err := s.challenges.Create(ctx, project.ID, project.Name, guildID, userDiscordID)
	if err != nil {
		span.RecordError(err)
		return ChallengeTicket{}, err
	}
	s.audit("verification.created", "project_id", project.ID, "guild_id", guildID, "user_discord_id", userDiscordID)
	return ChallengeTicket{Token: token, VerifyURL: s.dashboardURL + "/verify/" + token}, nil
}

// PeekChallenge returns the challenge and the message to sign without consuming it.
func (s *VerificationService) PeekChallenge(ctx context.Context, token string) (ChallengeView, error) {
	ctx, span := s.startSpan(ctx, "VerificationService.PeekChallenge")
	defer span.End()

	payload, err := s.challenges.Peek(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return ChallengeView{}, err
	}
	return ChallengeView{
		ProjectID:     payload.ProjectID,
		ProjectName:   payload.ProjectName,
		GuildID:       payload.GuildID,
		UserDiscordID: payload.UserDiscordID,
		Message:       payload.Message(),
		CreatedAt:     payload.CreatedAt,
	}, nil
}

// CompleteChallenge consumes the challenge and checks the wallet signature.
// The challenge is spent even when the signature turns out to be wrong; the
// member has to request a new one from the bot.
func (s *VerificationService) CompleteChallenge(ctx context.Context, token, walletAddress, signature string) (domain.Verification, error) {
	ctx, span := s.startSpan(ctx, "VerificationService.CompleteChallenge")
	defer span.End()

	address, err := wallet.NormalizeAddress(walletAddress)
	if err != nil {
		return domain.Verification{}, err
	}
	if strings.TrimSpace(signature) == "" {
		return domain.Verification{}, domain.ErrInvalidRequest
	}

	payload, err := s.challenges.Complete(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return domain.Verification{}, err
	}

	if err := wallet.VerifyPersonalSign(address, payload.Message(), signature); err != nil {
		s.audit("verification.rejected", "project_id", payload.ProjectID, "user_discord_id", payload.UserDiscordID, "wallet", address)
		return domain.Verification{}, err
	}

	now := s.now().UTC()
	record, err := s.verifications.SaveVerification(ctx, domain.Verification{
		ID:            s.node.Generate().Int64(),
		ProjectID:     payload.ProjectID,
		GuildID:       payload.GuildID,
		UserDiscordID: payload.UserDiscordID,
		WalletAddress: address,
		VerifiedAt:    now,
	})
	if err != nil {
		span.RecordError(err)
		return domain.Verification{}, err
	}

	job := domain.RoleSyncJob{
		ProjectID:     record.ProjectID,
		GuildID:       record.GuildID,
		UserDiscordID: record.UserDiscordID,
		WalletAddress: record.WalletAddress,
		RequestedAt:   now,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		// The verification is stored; the periodic sync will pick the member up.
		span.RecordError(err)
		s.log().Error("enqueue role sync failed",
			zap.String("project_id", record.ProjectID),
			zap.String("user_discord_id", record.UserDiscordID),
			zap.Error(err),
		)
	}

	s.audit("verification.completed", "project_id", record.ProjectID, "user_discord_id", record.UserDiscordID, "wallet", address)
	return record, nil
}
