package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/guildgate/internal/domain"
	"github.com/smallbiznis/guildgate/internal/jwt"
)

// Credential prefixes. Each is matched literally and case-sensitively.
const (
	BearerPrefix = "Bearer "
	BotPrefix    = "Bot "
	AdminPrefix  = "Admin "
)

const accessClaimsKey = "accessClaims"

type accessClaimsCtxKey struct{}

// ParseCredential returns the value after prefix, or ErrUnauthorized when the
// header does not start with exactly that prefix.
func ParseCredential(header, prefix string) (string, error) {
	if !strings.HasPrefix(header, prefix) {
		return "", domain.ErrUnauthorized
	}
	value := header[len(prefix):]
	if value == "" {
		return "", domain.ErrUnauthorized
	}
	return value, nil
}

// Auth validates bearer access tokens.
type Auth struct {
	Codec *jwt.Codec
}

// RequireAccessToken rejects the request with 401 unless it carries a valid
// access token. The failure reason is never echoed to the caller.
func (m *Auth) RequireAccessToken(c *gin.Context) {
	token, err := ParseCredential(c.GetHeader("Authorization"), BearerPrefix)
	if err != nil {
		abortUnauthorized(c)
		return
	}
	claims, err := m.Codec.VerifyAccess(token)
	if err != nil {
		abortUnauthorized(c)
		return
	}
	c.Set(accessClaimsKey, claims)
	c.Request = c.Request.WithContext(WithAccessClaims(c.Request.Context(), claims))
	c.Next()
}

// GetAccessClaims exposes verified access token claims to handlers.
func GetAccessClaims(c *gin.Context) (domain.AccessClaims, bool) {
	value, ok := c.Get(accessClaimsKey)
	if !ok {
		return domain.AccessClaims{}, false
	}
	claims, ok := value.(domain.AccessClaims)
	return claims, ok
}

// WithAccessClaims stores claims on a context for code below the HTTP layer.
func WithAccessClaims(ctx context.Context, claims domain.AccessClaims) context.Context {
	return context.WithValue(ctx, accessClaimsCtxKey{}, claims)
}

// AccessClaimsFromContext returns claims stored by WithAccessClaims.
func AccessClaimsFromContext(ctx context.Context) (domain.AccessClaims, bool) {
	claims, ok := ctx.Value(accessClaimsCtxKey{}).(domain.AccessClaims)
	return claims, ok
}

// CheckSharedSecret compares a prefixed header value with secret in constant
// time. A missing or wrong prefix is ErrUnauthorized; a wrong value is ErrForbidden.
func CheckSharedSecret(header, prefix, secret string) error {
	value, err := ParseCredential(header, prefix)
	if err != nil {
		return err
	}
	if secret == "" || subtle.ConstantTimeCompare([]byte(value), []byte(secret)) != 1 {
		return domain.ErrForbidden
	}
	return nil
}

// SharedSecret guards service-to-service routes such as the bot and admin APIs.
func SharedSecret(prefix, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := CheckSharedSecret(c.GetHeader("Authorization"), prefix, secret)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, domain.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			abortUnauthorized(c)
		}
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}
