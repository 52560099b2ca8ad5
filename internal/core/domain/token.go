package domain

import "time"

// TokenKind discriminates access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Valid reports whether k is a known token kind.
func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// TokenTypeBearer is the token_type returned to clients.
const TokenTypeBearer = "bearer"

// TokenClaims is the verified content of a signed token.
type TokenClaims struct {
	ID        string
	SubjectID string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RevokeReason records why a refresh token stopped being usable.
type RevokeReason string

const (
	RevokeRotated         RevokeReason = "rotated"
	RevokeLogout          RevokeReason = "logout"
	RevokeLogoutAll       RevokeReason = "logout_all"
	RevokePasswordChanged RevokeReason = "password_changed"
	RevokeReuseDetected   RevokeReason = "reuse_detected"
)

// RefreshTokenRecord is the ledger entry for one issued refresh token. Only
// the token hash is stored. Records are mutated solely to flip Revoked and
// are never deleted.
type RefreshTokenRecord struct {
	ID           string
	TokenHash    string
	PrincipalID  string
	FamilyID     string
	Revoked      bool
	RevokeReason RevokeReason
	RevokedAt    *time.Time
	IssuedAt     time.Time
	ExpiresAt    time.Time
	UserAgent    string
	IPAddress    string
}

// Expired reports whether the record is past its expiry at now.
func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
