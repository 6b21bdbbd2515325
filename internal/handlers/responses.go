package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: message, Code: code})
}

func notFound(c *gin.Context, code, message string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: message, Code: code})
}

func conflict(c *gin.Context, code, message string) {
	c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: message, Code: code})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Something went wrong. Please try again later.",
		Code:    "INTERNAL_ERROR",
	})
}

func serviceUnavailable(c *gin.Context, code, message string) {
	c.Header("Retry-After", "5")
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service_unavailable", Message: message, Code: code})
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return id, true
}
