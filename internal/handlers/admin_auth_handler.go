package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/internal/services"
	"github.com/almazaya/travel-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminAuthenticator checks back office credentials
type AdminAuthenticator interface {
	Login(ctx context.Context, email, password string) (*models.AdminLoginResponse, error)
}

// AdminAuthHandler handles admin authentication HTTP requests
type AdminAuthHandler struct {
	auth   AdminAuthenticator
	logger *logrus.Logger
}

// NewAdminAuthHandler creates a new admin auth handler
func NewAdminAuthHandler(auth AdminAuthenticator, logger *logrus.Logger) *AdminAuthHandler {
	return &AdminAuthHandler{auth: auth, logger: logger}
}

// Login handles POST /api/v1/admin/login
func (h *AdminAuthHandler) Login(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error())
		return
	}

	response, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.WithFields(logrus.Fields{
				"email": req.Email,
				"ip":    utils.GetRealIP(c),
			}).Warn("Admin login failed")
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid email or password",
				Code:    "INVALID_CREDENTIALS",
			})
			return
		}
		h.logger.WithError(err).Error("Admin login error")
		internalError(c)
		return
	}

	h.logger.WithField("email", response.Email).Info("Admin login successful")
	c.JSON(http.StatusOK, response)
}
