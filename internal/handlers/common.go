package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/quizdesk/attempt-service/internal/errors"
	"github.com/quizdesk/attempt-service/internal/services"
	"github.com/quizdesk/attempt-service/internal/token"
	"github.com/quizdesk/attempt-service/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"remote_addr", c.ClientIP(),
		"request_id", c.GetHeader("X-Request-ID"),
	}
	fields = append(fields, additionalFields...)
	h.logger.Info(message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"request_id", c.GetHeader("X-Request-ID"),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	fields = append(fields, additionalFields...)
	h.logger.LogError(err, message, fields...)
}

// ParseTokenParam extracts and sanity-checks the :token path parameter.
// Returns "" after writing the response when the token is malformed.
func (h *BaseHandler) ParseTokenParam(c *gin.Context) string {
	tok := strings.TrimSpace(c.Param("token"))
	if len(tok) != token.Length {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid token",
			Code:    "bad_token",
		})
		return ""
	}
	return tok
}

// handleServiceError maps service sentinel errors onto HTTP responses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors apperrors.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	if tooEarly, ok := services.IsTooEarly(err); ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Submission not allowed yet",
			Code:    "too_early",
			Details: tooEarly,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrVerifyLocked):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Verification attempts exhausted",
			Code:    "verify_locked",
		})
	case errors.Is(err, services.ErrAlreadyFinalized):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already finalized",
			Code:    "finalized",
		})
	case errors.Is(err, services.ErrAttemptNotVerified),
		errors.Is(err, services.ErrAttemptNotStarted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrInviteExpired),
		errors.Is(err, services.ErrAttemptTimeExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: err.Error(),
			Code:    "expired",
		})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
