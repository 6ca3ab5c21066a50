// Package verification stores the one-time challenges a holder signs with
// their wallet to link it to a Discord account.
package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/repository"
)

const (
	challengePrefix = "verify:challenge:"
	challengeTTL    = 15 * time.Minute
)

// Payload is the data bound to a challenge token.
type Payload struct {
	ProjectID     string    `json:"projectId"`
	ProjectName   string    `json:"projectName"`
	GuildID       string    `json:"guildId"`
	UserDiscordID string    `json:"userDiscordId"`
	Nonce         string    `json:"nonce"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Message is the text the wallet signs.
func (p Payload) Message() string {
	return fmt.Sprintf(
		"Verify wallet ownership for %s\n\nDiscord user: %s\nGuild: %s\nNonce: %s\nIssued at: %s",
		p.ProjectName, p.UserDiscordID, p.GuildID, p.Nonce, p.CreatedAt.UTC().Format(time.RFC3339),
	)
}

// Challenges creates, reads and consumes verification challenges.
type Challenges struct {
	store repository.EphemeralStore
	ttl   time.Duration
	now   func() time.Time
}

func NewChallenges(store repository.EphemeralStore) *Challenges {
	return &Challenges{store: store, ttl: challengeTTL, now: time.Now}
}

// Create stores a fresh challenge and returns its token.
func (c *Challenges) Create(ctx context.Context, projectID, projectName, guildID, userDiscordID string) (string, error) {
	token, err := repository.NewOpaqueKey(32)
	if err != nil {
		return "", fmt.Errorf("generate challenge token: %w", err)
	}
	nonce, err := randomNonce(16)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	raw, err := json.Marshal(Payload{
		ProjectID:     projectID,
		ProjectName:   projectName,
		GuildID:       guildID,
		UserDiscordID: userDiscordID,
		Nonce:         nonce,
		CreatedAt:     c.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encode challenge: %w", err)
	}
	if err := c.store.Set(ctx, challengeKey(token), string(raw), c.ttl); err != nil {
		return "", fmt.Errorf("store challenge: %w", err)
	}
	return token, nil
}

// Peek returns the payload without consuming it.
func (c *Challenges) Peek(ctx context.Context, token string) (Payload, error) {
	if strings.TrimSpace(token) == "" {
		return Payload{}, domain.ErrNotFound
	}
	raw, ok, err := c.store.Get(ctx, challengeKey(token))
	if err != nil {
		return Payload{}, fmt.Errorf("load challenge: %w", err)
	}
	if !ok {
		return Payload{}, domain.ErrNotFound
	}
	return decodePayload(raw)
}

// Complete consumes the challenge. Only the first caller gets the payload.
func (c *Challenges) Complete(ctx context.Context, token string) (Payload, error) {
	if strings.TrimSpace(token) == "" {
		return Payload{}, domain.ErrNotFound
	}
	raw, ok, err := c.store.GetAndDelete(ctx, challengeKey(token))
	if err != nil {
		return Payload{}, fmt.Errorf("consume challenge: %w", err)
	}
	if !ok {
		return Payload{}, domain.ErrNotFound
	}
	return decodePayload(raw)
}

func decodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("decode challenge: %w", err)
	}
	return p, nil
}

func challengeKey(token string) string {
	return challengePrefix + strings.TrimSpace(token)
}

func randomNonce(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
