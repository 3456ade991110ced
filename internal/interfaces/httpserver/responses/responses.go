package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chathistory-server/internal/infrastructure/logger"
	"chathistory-server/internal/utils/platformerrors"
)

// ErrorResponse is the error payload returned to clients.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError maps domain errors to HTTP responses.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		platformerrors.LogError(logger.GetLogger(), platformErr)

		reqCtx.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(platformErr.GetErrorType()), ErrorResponse{
			Error:     string(platformErr.GetErrorType()),
			Message:   message,
			RequestID: platformErr.RequestID,
		})
		return
	}

	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:   string(platformerrors.ErrorTypeInternal),
		Message: message,
	})
}

// HandleNewError creates a typed error at the route layer and handles it.
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string) {
	ctx := reqCtx.Request.Context()
	HandleError(reqCtx, platformerrors.NewError(ctx, platformerrors.LayerRoute, errorType, message, nil), message)
}
