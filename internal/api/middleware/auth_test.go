package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/empireo/brain/internal/core/domain"
)

type stubVerifier struct {
	verifyFn func(ctx context.Context, token string) (*domain.TokenClaims, error)
}

func (s *stubVerifier) VerifyAccess(ctx context.Context, token string) (*domain.TokenClaims, error) {
	return s.verifyFn(ctx, token)
}

func TestAuth_SetsPrincipalID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	verifier := &stubVerifier{verifyFn: func(_ context.Context, token string) (*domain.TokenClaims, error) {
		if token != "good-token" {
			t.Fatalf("unexpected token %q", token)
		}
		return &domain.TokenClaims{SubjectID: "p-1", Kind: domain.TokenKindAccess}, nil
	}}

	var seen string
	h := Auth(verifier)(func(c echo.Context) error {
		seen = PrincipalID(c)
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if seen != "p-1" {
		t.Fatalf("expected principal p-1, got %q", seen)
	}
}

func TestAuth_RejectsBadHeaders(t *testing.T) {
	verifier := &stubVerifier{verifyFn: func(context.Context, string) (*domain.TokenClaims, error) {
		t.Fatalf("verifier must not be called")
		return nil, nil
	}}

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic abc", "token-without-scheme"} {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(echo.HeaderAuthorization, header)
		}
		c := e.NewContext(req, httptest.NewRecorder())

		h := Auth(verifier)(func(echo.Context) error {
			t.Fatalf("should not reach next handler")
			return nil
		})
		if err := h(c); !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("header %q: expected ErrInvalidToken, got %v", header, err)
		}
	}
}

func TestAuth_PropagatesVerifierError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "bearer expired")
	c := e.NewContext(req, httptest.NewRecorder())

	verifier := &stubVerifier{verifyFn: func(context.Context, string) (*domain.TokenClaims, error) {
		return nil, domain.ErrInvalidToken
	}}
	h := Auth(verifier)(func(echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})

	if err := h(c); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
