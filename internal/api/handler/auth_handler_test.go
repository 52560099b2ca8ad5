package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, in ports.LoginInput) (*domain.TokenPair, error) {
			if in.Email != "a@x.com" || in.Password != "secret" {
				t.Fatalf("unexpected credentials: %+v", in)
			}
			if in.UserAgent != "test-agent" || in.IPAddress != "192.0.2.1" {
				t.Fatalf("client metadata not forwarded: %+v", in)
			}
			return &domain.TokenPair{AccessToken: "at", RefreshToken: "rt", TokenType: domain.TokenTypeBearer, ExpiresIn: 28800}, nil
		},
	}
	handler := NewAuthHandler(stub, &stubPrincipalService{})

	c, rec := newJSONContext(http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"secret"}`, "")
	c.Request().Header.Set("User-Agent", "test-agent")

	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["access_token"] != "at" || resp["refresh_token"] != "rt" || resp["token_type"] != "bearer" || resp["expires_in"] != float64(28800) {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAuthHandler_Login_ValidationAndFailure(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(context.Context, ports.LoginInput) (*domain.TokenPair, error) {
			return nil, domain.ErrAuthentication
		},
	}
	handler := NewAuthHandler(stub, &stubPrincipalService{})

	c, _ := newJSONContext(http.MethodPost, "/auth/login", `{"email":"a@x.com"}`, "")
	if err := handler.Login(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing password: expected ErrValidation, got %v", err)
	}

	c, _ = newJSONContext(http.MethodPost, "/auth/login", `{not json`, "")
	var he *echo.HTTPError
	if err := handler.Login(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %v", err)
	}

	c, _ = newJSONContext(http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"wrong"}`, "")
	if err := handler.Login(c); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	stub := &stubAuthService{
		refreshFn: func(_ context.Context, in ports.RefreshInput) (*domain.TokenPair, error) {
			if in.RefreshToken == "reused" {
				return nil, domain.ErrInvalidToken
			}
			return &domain.TokenPair{AccessToken: "at2", RefreshToken: "rt2", TokenType: domain.TokenTypeBearer}, nil
		},
	}
	handler := NewAuthHandler(stub, &stubPrincipalService{})

	c, rec := newJSONContext(http.MethodPost, "/auth/refresh", `{"refresh_token":"rt"}`, "")
	if err := handler.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, _ = newJSONContext(http.MethodPost, "/auth/refresh", `{"refresh_token":"reused"}`, "")
	if err := handler.Refresh(c); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var got string
	stub := &stubAuthService{
		logoutFn: func(_ context.Context, token string) error {
			got = token
			return nil
		},
	}
	handler := NewAuthHandler(stub, &stubPrincipalService{})

	c, rec := newJSONContext(http.MethodPost, "/auth/logout", `{"refresh_token":"rt"}`, "")
	if err := handler.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || got != "rt" {
		t.Fatalf("expected 204 for rt, got %d %q", rec.Code, got)
	}
}

func TestAuthHandler_LogoutAll(t *testing.T) {
	stub := &stubAuthService{
		logoutAllFn: func(_ context.Context, principalID string) (int64, error) {
			if principalID != "p-1" {
				t.Fatalf("unexpected principal %q", principalID)
			}
			return 3, nil
		},
	}
	handler := NewAuthHandler(stub, &stubPrincipalService{})

	c, rec := newJSONContext(http.MethodPost, "/auth/logout-all", "", "p-1")
	if err := handler.LogoutAll(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"revoked\":3}\n" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	stub := &stubAuthService{
		changePasswordFn: func(_ context.Context, in ports.ChangePasswordInput) error {
			if in.PrincipalID != "p-1" || in.CurrentPassword != "old-secret" || in.NewPassword != "new-secret" {
				t.Fatalf("unexpected input %+v", in)
			}
			return nil
		},
	}
	handler := NewAuthHandler(stub, &stubPrincipalService{})

	c, rec := newJSONContext(http.MethodPost, "/auth/change-password", `{"current_password":"old-secret","new_password":"new-secret"}`, "p-1")
	if err := handler.ChangePassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	c, _ = newJSONContext(http.MethodPost, "/auth/change-password", `{"current_password":"old-secret","new_password":"short"}`, "p-1")
	if err := handler.ChangePassword(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("short password: expected ErrValidation, got %v", err)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	principals := &stubPrincipalService{
		meFn: func(_ context.Context, principalID string) (*ports.Profile, error) {
			return &ports.Profile{
				Principal: &domain.Principal{ID: principalID, Email: "a@x.com", PasswordHash: "$2a$secret", Roles: []string{"viewer"}},
				Permissions: []domain.Permission{
					{Resource: "reports", Action: "read"},
					{Resource: "students", Action: "read"},
				},
			}, nil
		},
	}
	handler := NewAuthHandler(&stubAuthService{}, principals)

	c, rec := newJSONContext(http.MethodGet, "/auth/me", "", "p-1")
	if err := handler.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp struct {
		Principal   map[string]any `json:"principal"`
		Permissions []string       `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Principal["id"] != "p-1" {
		t.Fatalf("unexpected principal %+v", resp.Principal)
	}
	if _, leaked := resp.Principal["password_hash"]; leaked {
		t.Fatalf("password hash must never be serialised")
	}
	if len(resp.Permissions) != 2 || resp.Permissions[0] != "reports:read" {
		t.Fatalf("unexpected permissions %v", resp.Permissions)
	}
}

func TestAuthHandler_Bootstrap(t *testing.T) {
	principals := &stubPrincipalService{
		bootstrapFn: func(_ context.Context, token string, in ports.CreatePrincipalInput) (*domain.Principal, error) {
			if token != "let-me-in" {
				return nil, domain.ErrForbidden
			}
			return &domain.Principal{ID: "p-1", Email: in.Email, Roles: []string{domain.RoleAdmin}, Active: true}, nil
		},
	}
	handler := NewAuthHandler(&stubAuthService{}, principals)
	body := `{"email":"root@x.com","password":"correct-horse","full_name":"Root"}`

	c, rec := newJSONContext(http.MethodPost, "/auth/bootstrap", body, "")
	c.Request().Header.Set(HeaderBootstrapToken, "let-me-in")
	if err := handler.Bootstrap(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	c, _ = newJSONContext(http.MethodPost, "/auth/bootstrap", body, "")
	if err := handler.Bootstrap(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("missing token: expected ErrForbidden, got %v", err)
	}
}
