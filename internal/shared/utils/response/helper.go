package response

import (
	"venuely/internal/shared/apperrors"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError renders a service error using its kind to pick the status code.
func RespondError(c *gin.Context, err error) {
	code := apperrors.HTTPStatus(err)
	RespondJSON(c, "error", code, apperrors.Message(err), nil, ErrorDetail{
		Kind:      string(apperrors.KindOf(err)),
		Retryable: apperrors.IsRetryable(err),
	})
}
