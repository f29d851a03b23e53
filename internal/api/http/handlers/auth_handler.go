package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goldvault/support-messaging/internal/api/dto"
	"github.com/goldvault/support-messaging/internal/service"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// AuthHandler exposes admin authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// AdminLogin handles POST /auth/admin/login.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.authService.AdminLogin(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AdminLoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		AdminID:   result.Admin.ID,
		Name:      result.Admin.Name,
	}})
}
