// Package httpapi exposes the feed Core's HTTP surface over Gin,
// mapping apperr.Kind to status codes per spec.md §7.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clipfeed/internal/apperr"
)

// SuccessResponse sends the {success:true, data} envelope.
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// CreatedResponse sends a 201 {success:true, data} envelope.
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}

// ErrorResponse sends the {success:false, error, message} envelope for
// a raw (non-apperr) failure.
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// ValidationErrorResponse sends a 400 response for a request-binding
// or struct-validation failure.
func ValidationErrorResponse(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "validation failed",
		"message": err.Error(),
	})
}

// statusFor maps an apperr.Kind to its HTTP status per spec.md §7.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusBadRequest
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.PaymentRequired:
		return http.StatusPaymentRequired
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.Dependency:
		return http.StatusServiceUnavailable
	case apperr.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HandleError inspects err, maps it through apperr, and sends the
// matching error envelope.
func HandleError(c *gin.Context, err error) {
	if ae, ok := apperr.As(err); ok {
		c.JSON(statusFor(ae.Kind), gin.H{
			"success": false,
			"error":   string(ae.Kind),
			"message": ae.Message,
			"details": ae.Details,
		})
		return
	}
	ErrorResponse(c, http.StatusInternalServerError, err.Error())
}
