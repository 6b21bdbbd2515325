package handlers

import (
	"github.com/almazaya/travel-backend/internal/middleware"
	"github.com/almazaya/travel-backend/internal/services"
	"github.com/almazaya/travel-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// requestMeta captures who made the request for the payment audit trail
func requestMeta(c *gin.Context) services.RequestMeta {
	userAgent := utils.GetUserAgent(c)
	return services.RequestMeta{
		IPAddress:  utils.GetRealIP(c),
		UserAgent:  userAgent,
		DeviceType: utils.DeviceType(userAgent),
		RequestID:  middleware.GetRequestID(c),
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
	}
}

// requestOrigin is the public scheme and host, used for callback URLs when APP_BASE_URL is unset
func requestOrigin(c *gin.Context) services.RequestOrigin {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}

	host := c.Request.Host
	if forwarded := c.GetHeader("X-Forwarded-Host"); forwarded != "" {
		host = forwarded
	}

	return services.RequestOrigin{Scheme: scheme, Host: host}
}
