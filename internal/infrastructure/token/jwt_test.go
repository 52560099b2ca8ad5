package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/empireo/brain/internal/core/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newCodec(t *testing.T) *JWTCodec {
	t.Helper()
	c, err := NewJWTCodec("secret", "brain")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func TestJWTCodec_IssueAndVerify(t *testing.T) {
	c := newCodec(t)

	signed, issued, err := c.Issue("principal-1", domain.TokenKindRefresh, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.ID == "" {
		t.Fatalf("expected jti to be set")
	}

	got, err := c.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.SubjectID != "principal-1" || got.Kind != domain.TokenKindRefresh {
		t.Fatalf("unexpected claims: %+v", got)
	}
	if !got.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Fatalf("expiry mismatch: %s vs %s", got.ExpiresAt, issued.ExpiresAt)
	}
}

func TestJWTCodec_SameSecondTokensDiffer(t *testing.T) {
	c := newCodec(t).WithClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	a, _, _ := c.Issue("p", domain.TokenKindRefresh, time.Hour)
	b, _, _ := c.Issue("p", domain.TokenKindRefresh, time.Hour)
	if a == b {
		t.Fatalf("expected distinct tokens for the same subject and second")
	}
	if HashToken(a) == HashToken(b) {
		t.Fatalf("expected distinct hashes")
	}
}

func TestJWTCodec_Expired(t *testing.T) {
	start := time.Now()
	c := newCodec(t).WithClock(fixedClock(start))

	signed, _, err := c.Issue("p", domain.TokenKindAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	c.WithClock(fixedClock(start.Add(2 * time.Minute)))
	if _, err := c.Verify(signed); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTCodec_WrongSecret(t *testing.T) {
	c := newCodec(t)
	other, _ := NewJWTCodec("other", "brain")

	signed, _, _ := other.Issue("p", domain.TokenKindAccess, time.Hour)
	if _, err := c.Verify(signed); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTCodec_Malformed(t *testing.T) {
	c := newCodec(t)
	for _, in := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := c.Verify(in); !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("%q: expected ErrInvalidToken, got %v", in, err)
		}
	}
}

func TestJWTCodec_RejectsUnknownKindAndAlgorithm(t *testing.T) {
	c := newCodec(t)

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "p",
		"type": "session",
		"jti":  "x",
		"iss":  "brain",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := bad.SignedString([]byte("secret"))
	if _, err := c.Verify(signed); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("unknown kind: expected ErrInvalidToken, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "p",
		"type": "access",
		"jti":  "x",
		"iss":  "brain",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := c.Verify(unsigned); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("alg none: expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTCodec_IssueRejectsBadArguments(t *testing.T) {
	c := newCodec(t)
	if _, _, err := c.Issue("", domain.TokenKindAccess, time.Hour); err == nil {
		t.Fatalf("expected error for empty subject")
	}
	if _, _, err := c.Issue("p", "weird", time.Hour); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, _, err := c.Issue("p", domain.TokenKindAccess, 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestHashToken_NeverReturnsRawValue(t *testing.T) {
	raw := "eyJhbGciOi.payload.sig"
	h := HashToken(raw)
	if h == raw || strings.Contains(h, raw) {
		t.Fatalf("hash leaks raw token")
	}
	if HashToken(raw) != h {
		t.Fatalf("hash is not deterministic")
	}
}

func TestNewJWTCodec_EmptySecret(t *testing.T) {
	if _, err := NewJWTCodec("", "brain"); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
