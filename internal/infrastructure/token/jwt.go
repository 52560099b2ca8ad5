// Package token implements the token codec: HS256-signed JWTs carrying a
// subject id and a token kind, plus the hash used to key refresh tokens in
// the ledger.
package token

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/empireo/brain/internal/core/domain"
)

// Claims is the JWT payload.
type Claims struct {
	Kind domain.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// JWTCodec signs and verifies tokens with a shared secret.
type JWTCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTCodec returns a codec using secret for HS256 signatures.
func NewJWTCodec(secret, issuer string) (*JWTCodec, error) {
	if secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	return &JWTCodec{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// WithClock replaces the time source. Used by tests.
func (c *JWTCodec) WithClock(now func() time.Time) *JWTCodec {
	c.now = now
	return c
}

// Issue mints a token of the given kind for subjectID that expires after ttl.
func (c *JWTCodec) Issue(subjectID string, kind domain.TokenKind, ttl time.Duration) (string, *domain.TokenClaims, error) {
	if subjectID == "" || !kind.Valid() || ttl <= 0 {
		return "", nil, fmt.Errorf("issue token: invalid arguments (kind=%q ttl=%s)", kind, ttl)
	}

	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return signed, &domain.TokenClaims{
		ID:        claims.ID,
		SubjectID: subjectID,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// Verify checks signature, algorithm, expiry and payload shape. Every failure
// is reported as domain.ErrInvalidToken.
func (c *JWTCodec) Verify(tokenString string) (*domain.TokenClaims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	tkn, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Kind.Valid() || claims.ID == "" {
		return nil, domain.ErrInvalidToken
	}

	out := &domain.TokenClaims{
		ID:        claims.ID,
		SubjectID: claims.Subject,
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, nil
}

// Hash implements ports.TokenCodec.
func (c *JWTCodec) Hash(raw string) string {
	return HashToken(raw)
}

// HashToken returns the ledger key for a raw refresh token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
