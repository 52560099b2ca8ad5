package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/empireo/brain/internal/api/middleware"
	"github.com/empireo/brain/internal/core/ports"
)

// PrincipalHandler serves the administrative principal endpoints.
type PrincipalHandler struct {
	service ports.PrincipalService
}

func NewPrincipalHandler(service ports.PrincipalService) *PrincipalHandler {
	return &PrincipalHandler{service: service}
}

type createPrincipalRequest struct {
	Email    string   `json:"email"     validate:"required,email"`
	Password string   `json:"password"  validate:"required,min=8,max=72"`
	FullName string   `json:"full_name" validate:"required"`
	Roles    []string `json:"roles"     validate:"required,min=1"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"        validate:"required,email"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// Create registers a new staff principal.
//
// @Summary      Create principal
// @Tags         principals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createPrincipalRequest  true  "Principal details"
// @Success      201   {object}  domain.Principal
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /admin/principals [post]
func (h *PrincipalHandler) Create(c echo.Context) error {
	var req createPrincipalRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	p, err := h.service.Create(c.Request().Context(), middleware.PrincipalID(c), ports.CreatePrincipalInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Roles:    req.Roles,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Deactivate disables a principal and revokes its sessions.
//
// @Summary      Deactivate principal
// @Tags         principals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Principal id"
// @Success      200  {object}  revokedResponse
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/principals/{id}/deactivate [post]
func (h *PrincipalHandler) Deactivate(c echo.Context) error {
	n, err := h.service.Deactivate(c.Request().Context(), middleware.PrincipalID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, revokedResponse{Revoked: n})
}

// ResetPassword sets a new password for another principal.
//
// @Summary      Reset password
// @Tags         principals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      resetPasswordRequest  true  "Target email and new password"
// @Success      200   {object}  revokedResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /admin/principals/reset-password [post]
func (h *PrincipalHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	n, err := h.service.ResetPassword(c.Request().Context(), middleware.PrincipalID(c), ports.ResetPasswordInput{
		Email:       req.Email,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, revokedResponse{Revoked: n})
}
