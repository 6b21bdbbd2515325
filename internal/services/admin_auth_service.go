package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/almazaya/travel-backend/internal/config"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthService handles the back office login for the single configured admin
type AdminAuthService struct {
	email        string
	passwordHash []byte
	jwtService   *jwt.Service
	logger       *logrus.Logger
}

// NewAdminAuthService creates a new admin auth service
func NewAdminAuthService(cfg config.AdminConfig, jwtService *jwt.Service, logger *logrus.Logger) *AdminAuthService {
	return &AdminAuthService{
		email:        strings.ToLower(strings.TrimSpace(cfg.Email)),
		passwordHash: []byte(cfg.PasswordHash),
		jwtService:   jwtService,
		logger:       logger,
	}
}

// Configured reports whether an admin account has been set up
func (s *AdminAuthService) Configured() bool {
	return s.email != "" && len(s.passwordHash) > 0
}

// Login verifies the credentials and issues an admin access token
func (s *AdminAuthService) Login(ctx context.Context, email, password string) (*models.AdminLoginResponse, error) {
	if !s.Configured() {
		s.logger.Error("CRITICAL: admin login attempted but ADMIN_EMAIL/ADMIN_PASSWORD_HASH are not set")
		return nil, ErrInvalidCredentials
	}

	normalized := strings.ToLower(strings.TrimSpace(email))

	// Always run the bcrypt comparison so a wrong email costs the same as a wrong password
	hashErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if normalized != s.email || hashErr != nil {
		s.logger.WithField("email", normalized).Warn("Admin login rejected")
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.jwtService.GenerateAccessToken(s.email, []string{models.RoleAdmin})
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.WithField("email", s.email).Info("Admin logged in")

	return &models.AdminLoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtService.AccessTokenExpiry().Seconds()),
		Email:       s.email,
	}, nil
}
