package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/empireo/brain/internal/api/middleware"
	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

// HeaderBootstrapToken carries the one-time secret for POST /auth/bootstrap.
const HeaderBootstrapToken = "X-Bootstrap-Token"

type AuthHandler struct {
	authService      ports.AuthService
	principalService ports.PrincipalService
}

func NewAuthHandler(authService ports.AuthService, principalService ports.PrincipalService) *AuthHandler {
	return &AuthHandler{authService: authService, principalService: principalService}
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72"`
}

type bootstrapRequest struct {
	Email    string `json:"email"     validate:"required,email"`
	Password string `json:"password"  validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required"`
}

type revokedResponse struct {
	Revoked int64 `json:"revoked"`
}

type profileResponse struct {
	Principal   *domain.Principal `json:"principal"`
	Permissions []string          `json:"permissions"`
}

// Login exchanges credentials for a token pair.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  domain.TokenPair
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	pair, err := h.authService.Login(c.Request().Context(), ports.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh rotates a refresh token.
//
// @Summary      Refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Current refresh token"
// @Success      200   {object}  domain.TokenPair
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	pair, err := h.authService.Refresh(c.Request().Context(), ports.RefreshInput{
		RefreshToken: req.RefreshToken,
		UserAgent:    c.Request().UserAgent(),
		IPAddress:    c.RealIP(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout revokes one refresh token. Unknown tokens are accepted.
//
// @Summary      Logout
// @Tags         auth
// @Accept       json
// @Param        body  body  refreshRequest  true  "Refresh token to revoke"
// @Success      204
// @Failure      400   {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every refresh token of the caller.
//
// @Summary      Logout everywhere
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  revokedResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	n, err := h.authService.LogoutAll(c.Request().Context(), middleware.PrincipalID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, revokedResponse{Revoked: n})
}

// ChangePassword replaces the caller's password and revokes all sessions.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  changePasswordRequest  true  "Current and new password"
// @Success      204
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.authService.ChangePassword(c.Request().Context(), ports.ChangePasswordInput{
		PrincipalID:     middleware.PrincipalID(c),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile and effective permissions.
//
// @Summary      Current principal
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  profileResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	profile, err := h.principalService.Me(c.Request().Context(), middleware.PrincipalID(c))
	if err != nil {
		return err
	}

	perms := make([]string, 0, len(profile.Permissions))
	for _, p := range profile.Permissions {
		perms = append(perms, p.String())
	}
	return c.JSON(http.StatusOK, profileResponse{Principal: profile.Principal, Permissions: perms})
}

// Bootstrap creates the first administrator.
//
// @Summary      Bootstrap the first administrator
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        X-Bootstrap-Token  header    string            true  "Bootstrap secret"
// @Param        body               body      bootstrapRequest  true  "Administrator details"
// @Success      201                {object}  domain.Principal
// @Failure      400                {object}  map[string]string
// @Failure      403                {object}  map[string]string
// @Failure      409                {object}  map[string]string
// @Router       /auth/bootstrap [post]
func (h *AuthHandler) Bootstrap(c echo.Context) error {
	var req bootstrapRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	p, err := h.principalService.Bootstrap(c.Request().Context(), c.Request().Header.Get(HeaderBootstrapToken), ports.CreatePrincipalInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}
