package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/relayops/dispatch-api/pkg/errors"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler converts errors attached to the gin context into JSON
// responses. Application error codes map onto HTTP statuses; everything else
// is a 500 with the message suppressed.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("request error")
		}

		lastErr := c.Errors.Last().Err
		status, message := statusFor(lastErr)
		c.JSON(status, ErrorResponse{
			Code:    status,
			Message: message,
			TraceID: requestID,
		})
	}
}

func statusFor(err error) (int, string) {
	switch {
	case apperrors.IsCode(err, apperrors.ErrNotFound),
		apperrors.IsCode(err, apperrors.ErrCredentialNotFound):
		return http.StatusNotFound, err.Error()
	case apperrors.IsCode(err, apperrors.ErrBadRequest),
		apperrors.IsCode(err, apperrors.ErrMetricInput):
		return http.StatusBadRequest, err.Error()
	case apperrors.IsCode(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case apperrors.IsCode(err, apperrors.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case apperrors.IsCode(err, apperrors.ErrNoCredential),
		apperrors.IsCode(err, apperrors.ErrDispatchFailed):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
