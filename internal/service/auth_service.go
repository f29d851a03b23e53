package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/goldvault/support-messaging/internal/auth"
	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/repository"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// AuthService authenticates admins and issues access tokens.
type AuthService struct {
	admins repository.AdminRepository
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(admins repository.AdminRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	return &AuthService{admins: admins, tokens: tokens, logger: logger}
}

// AdminLoginResult carries a fresh token and the authenticated admin.
type AdminLoginResult struct {
	Token     string
	ExpiresAt time.Time
	Admin     *domain.Admin
}

// AdminLogin verifies credentials and returns a signed access token. Bad
// email and bad password produce the same error so the endpoint does not
// leak which admins exist.
func (a *AuthService) AdminLogin(ctx context.Context, email, password string) (*AdminLoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	admin, err := a.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !admin.Active {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(admin.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := a.tokens.GenerateToken(admin.ID, domain.SubjectTypeAdmin)
	if err != nil {
		a.logger.Error("generate admin token", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return &AdminLoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin}, nil
}

// Tokens exposes the token manager for transports that verify tokens
// themselves, such as the websocket authenticate envelope.
func (a *AuthService) Tokens() *auth.TokenManager {
	return a.tokens
}
