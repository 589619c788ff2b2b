package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr maps engine errors onto a status and code.
func RespondErr(c *gin.Context, err error) {
	status, code := Classify(err)
	RespondError(c, status, code, err)
}

func Classify(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errs.IsInvalidArgument(err):
		return http.StatusBadRequest, "invalid_argument"
	case errs.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errs.IsConfiguration(err):
		return http.StatusServiceUnavailable, "not_configured"
	case errs.IsTransient(err):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
