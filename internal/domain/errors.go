package domain

import "errors"

var (
	// ErrUnauthorized signals a missing or malformed credential.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden signals a well-formed credential carrying the wrong value.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrInvalidToken indicates a bad signature, an expired token or a wrong kind tag.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrRevoked indicates a correctly signed refresh token whose store record is gone.
	ErrRevoked = errors.New("auth: token revoked")
	// ErrNotFound indicates a one-time value that was never issued, already used or expired.
	ErrNotFound = errors.New("auth: not found")
	// ErrInvalidState indicates the OAuth state was missing or already redeemed.
	ErrInvalidState = errors.New("oauth: invalid state")
	// ErrInvalidRequest indicates caller input validation errors.
	ErrInvalidRequest = errors.New("auth: invalid request")
	// ErrInvalidSignature indicates the wallet signature does not match the challenge.
	ErrInvalidSignature = errors.New("verification: invalid signature")
)
