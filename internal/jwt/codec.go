package jwt

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/smallbiznis/guildgate/internal/domain"
)

const issuer = "guildgate"

// Codec signs and verifies access and refresh tokens. Each kind has its own
// secret, and every token carries a kind tag that is checked on verify.
type Codec struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec constructs a codec. The two secrets must be non-empty and distinct.
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, errors.New("jwt: access and refresh secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("jwt: token lifetimes must be positive")
	}
	c := &Codec{
		accessKey:  deriveKey(accessSecret),
		refreshKey: deriveKey(refreshSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HS256 rejects keys shorter than the hash output, so secrets are hashed to size.
func deriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// RefreshTTL reports the refresh lifetime, which is also the store TTL of its record.
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

type tokenClaims struct {
	Kind domain.TokenKind `json:"kind"`
	Name string           `json:"name,omitempty"`
}

// IssueAccessToken signs a short-lived access token.
func (c *Codec) IssueAccessToken(subject, displayName string) (string, error) {
	return c.sign(c.accessKey, gojwt.Claims{Subject: subject}, c.accessTTL, tokenClaims{
		Kind: domain.TokenKindAccess,
		Name: displayName,
	})
}

// IssueRefreshToken signs a refresh token whose jti is the store record id.
func (c *Codec) IssueRefreshToken(subject, tokenID string) (string, error) {
	return c.sign(c.refreshKey, gojwt.Claims{Subject: subject, ID: tokenID}, c.refreshTTL, tokenClaims{
		Kind: domain.TokenKindRefresh,
	})
}

func (c *Codec) sign(key []byte, std gojwt.Claims, ttl time.Duration, custom tokenClaims) (string, error) {
	if strings.TrimSpace(std.Subject) == "" {
		return "", fmt.Errorf("sign %s token: empty subject", custom.Kind)
	}
	signer, err := gojose.NewSigner(gojose.SigningKey{Algorithm: gojose.HS256, Key: key}, (&gojose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := c.now().UTC()
	std.Issuer = issuer
	std.IssuedAt = gojwt.NewNumericDate(now)
	std.Expiry = gojwt.NewNumericDate(now.Add(ttl))

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

// VerifyAccess validates an access token against the access secret.
func (c *Codec) VerifyAccess(token string) (domain.AccessClaims, error) {
	std, custom, err := c.verify(token, domain.TokenKindAccess, c.accessKey)
	if err != nil {
		return domain.AccessClaims{}, err
	}
	return domain.AccessClaims{
		Subject:     std.Subject,
		DisplayName: custom.Name,
		Kind:        custom.Kind,
		IssuedAt:    std.IssuedAt.Time().UTC(),
		ExpiresAt:   std.Expiry.Time().UTC(),
	}, nil
}

// VerifyRefresh validates a refresh token against the refresh secret. It does
// not consult the store; see session.Registry for that.
func (c *Codec) VerifyRefresh(token string) (domain.RefreshClaims, error) {
	std, custom, err := c.verify(token, domain.TokenKindRefresh, c.refreshKey)
	if err != nil {
		return domain.RefreshClaims{}, err
	}
	if std.ID == "" {
		return domain.RefreshClaims{}, fmt.Errorf("%w: missing token id", domain.ErrInvalidToken)
	}
	return domain.RefreshClaims{
		Subject:   std.Subject,
		TokenID:   std.ID,
		Kind:      custom.Kind,
		IssuedAt:  std.IssuedAt.Time().UTC(),
		ExpiresAt: std.Expiry.Time().UTC(),
	}, nil
}

// verify collapses every failure into ErrInvalidToken; the wrapped detail is for logs only.
func (c *Codec) verify(token string, kind domain.TokenKind, key []byte) (*gojwt.Claims, *tokenClaims, error) {
	parsed, err := gojwt.ParseSigned(strings.TrimSpace(token), []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse: %v", domain.ErrInvalidToken, err)
	}

	var std gojwt.Claims
	var custom tokenClaims
	if err := parsed.Claims(key, &std, &custom); err != nil {
		return nil, nil, fmt.Errorf("%w: signature: %v", domain.ErrInvalidToken, err)
	}

	if std.Expiry == nil || std.IssuedAt == nil {
		return nil, nil, fmt.Errorf("%w: missing lifetime", domain.ErrInvalidToken)
	}
	now := c.now()
	if err := std.ValidateWithLeeway(gojwt.Expected{Issuer: issuer, Time: now}, 0); err != nil {
		return nil, nil, fmt.Errorf("%w: claims: %v", domain.ErrInvalidToken, err)
	}
	// go-jose only rejects after exp; a token is already dead at exp.
	if !now.Before(std.Expiry.Time()) {
		return nil, nil, fmt.Errorf("%w: expired", domain.ErrInvalidToken)
	}
	if custom.Kind != kind {
		return nil, nil, fmt.Errorf("%w: kind %q, want %q", domain.ErrInvalidToken, custom.Kind, kind)
	}
	if std.Subject == "" {
		return nil, nil, fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}
	return &std, &custom, nil
}
