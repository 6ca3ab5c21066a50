package domain

import "time"

// TokenKind tags a signed token so one kind can never stand in for the other.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// AccessClaims is the decoded payload of an access token.
type AccessClaims struct {
	Subject     string    `json:"sub"`
	DisplayName string    `json:"name"`
	Kind        TokenKind `json:"kind"`
	IssuedAt    time.Time `json:"iat"`
	ExpiresAt   time.Time `json:"exp"`
}

// RefreshClaims is the decoded payload of a refresh token. TokenID is the
// handle of the store record that keeps the token alive.
type RefreshClaims struct {
	Subject   string    `json:"sub"`
	TokenID   string    `json:"jti"`
	Kind      TokenKind `json:"kind"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenPair is returned on login and on every successful refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
