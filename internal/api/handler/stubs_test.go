package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

type stubAuthService struct {
	loginFn          func(ctx context.Context, in ports.LoginInput) (*domain.TokenPair, error)
	refreshFn        func(ctx context.Context, in ports.RefreshInput) (*domain.TokenPair, error)
	logoutFn         func(ctx context.Context, refreshToken string) error
	logoutAllFn      func(ctx context.Context, principalID string) (int64, error)
	changePasswordFn func(ctx context.Context, in ports.ChangePasswordInput) error
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*domain.TokenPair, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) Refresh(ctx context.Context, in ports.RefreshInput) (*domain.TokenPair, error) {
	return s.refreshFn(ctx, in)
}

func (s *stubAuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.logoutFn(ctx, refreshToken)
}

func (s *stubAuthService) LogoutAll(ctx context.Context, principalID string) (int64, error) {
	return s.logoutAllFn(ctx, principalID)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, in ports.ChangePasswordInput) error {
	return s.changePasswordFn(ctx, in)
}

func (s *stubAuthService) VerifyAccess(context.Context, string) (*domain.TokenClaims, error) {
	return nil, domain.ErrInvalidToken
}

type stubPrincipalService struct {
	bootstrapFn     func(ctx context.Context, token string, in ports.CreatePrincipalInput) (*domain.Principal, error)
	createFn        func(ctx context.Context, actorID string, in ports.CreatePrincipalInput) (*domain.Principal, error)
	deactivateFn    func(ctx context.Context, actorID, principalID string) (int64, error)
	resetPasswordFn func(ctx context.Context, actorID string, in ports.ResetPasswordInput) (int64, error)
	meFn            func(ctx context.Context, principalID string) (*ports.Profile, error)
}

func (s *stubPrincipalService) Bootstrap(ctx context.Context, token string, in ports.CreatePrincipalInput) (*domain.Principal, error) {
	return s.bootstrapFn(ctx, token, in)
}

func (s *stubPrincipalService) Create(ctx context.Context, actorID string, in ports.CreatePrincipalInput) (*domain.Principal, error) {
	return s.createFn(ctx, actorID, in)
}

func (s *stubPrincipalService) Deactivate(ctx context.Context, actorID, principalID string) (int64, error) {
	return s.deactivateFn(ctx, actorID, principalID)
}

func (s *stubPrincipalService) ResetPassword(ctx context.Context, actorID string, in ports.ResetPasswordInput) (int64, error) {
	return s.resetPasswordFn(ctx, actorID, in)
}

func (s *stubPrincipalService) Me(ctx context.Context, principalID string) (*ports.Profile, error) {
	return s.meFn(ctx, principalID)
}

// newJSONContext builds an echo context for a JSON request. A non-empty
// principalID simulates the Auth middleware having run.
func newJSONContext(method, path, body, principalID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if principalID != "" {
		c.Set("principal_id", principalID)
	}
	return c, rec
}
