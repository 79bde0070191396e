package jsonresponse

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const RequestIDContextKey = "request_id"

var (
	ErrNotFound      = errors.New("requested resource not found")
	ErrInvalidInput  = errors.New("invalid input provided")
	ErrInternalError = errors.New("internal server error")
)

type AppError struct {
	Code    int    `json:"-"`     // HTTP Status Code
	Message string `json:"error"` // User-friendly message
	Err     error  `json:"-"`     // Internal error (for logging)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError attaches the client-facing message and status to err.
func WrapError(err error, message string, code int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WriteResponse sends a JSON response with the given status code and data.
// Optional headers can be provided to set additional response headers.
func WriteResponse(c *gin.Context, statusCode int, data any, headers ...map[string]string) {
	if len(headers) > 0 {
		for key, value := range headers[0] {
			c.Header(key, value)
		}
	}

	c.JSON(statusCode, data)
}

// WriteError aborts the request. Only the AppError message reaches the
// client; anything else becomes a generic 500.
func WriteError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = WrapError(fmt.Errorf("%w: %w", ErrInternalError, err), "Internal Server Error", http.StatusInternalServerError)
	}

	_ = c.Error(appErr)
	slog.Error("request failed",
		slog.String("request_id", c.GetString(RequestIDContextKey)),
		slog.Int("status", appErr.Code),
		slog.String("message", appErr.Message),
		slog.Any("error", appErr.Err))

	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}
