// Package response provides unified JSON response helpers.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	app_errors "harmony-bridge/internal/errors"
)

// ErrorResponse is the unified error envelope returned by the bridge's
// own endpoints. Upstream bodies are relayed as-is and never wrapped.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse is the unified success envelope for management
// endpoints such as the health probe.
type SuccessResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success sends a standardized success response.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "Success",
		Data:    data,
	})
}

// Error sends a standardized error response from an APIError.
func Error(c *gin.Context, apiErr *app_errors.APIError) {
	c.JSON(apiErr.HTTPStatus, gin.H{
		"error": ErrorResponse{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}
