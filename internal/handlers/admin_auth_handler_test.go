package handlers

import (
	"net/http"
	"testing"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestAdminAuthHandler_Login(t *testing.T) {
	auth := &mockAuthenticator{}
	auth.On("Login", mock.Anything, "admin@almazaya.sa", "s3cret-pass").Return(&models.AdminLoginResponse{
		AccessToken: "token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		Email:       "admin@almazaya.sa",
	}, nil)
	auth.On("Login", mock.Anything, "admin@almazaya.sa", "wrong-pass").Return(nil, services.ErrInvalidCredentials)

	h := NewAdminAuthHandler(auth, testLogger())
	router := setupTestRouter()
	router.POST("/api/v1/admin/login", h.Login)

	w := serve(router, postJSON("/api/v1/admin/login", `{"email":"admin@almazaya.sa","password":"s3cret-pass"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"access_token":"token","token_type":"Bearer","expires_in":3600,"email":"admin@almazaya.sa"}`, w.Body.String())

	w = serve(router, postJSON("/api/v1/admin/login", `{"email":"admin@almazaya.sa","password":"wrong-pass"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")

	w = serve(router, postJSON("/api/v1/admin/login", `{"email":"not-an-email","password":"s3cret-pass"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
