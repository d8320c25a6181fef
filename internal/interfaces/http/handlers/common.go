// Package handlers implements the JSON endpoints of the engine API.
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Detail  string              `json:"detail,omitempty"`
}

// respondError maps an error to its HTTP status via the engine's code table.
// Non-AppError causes are masked behind the default message for their code.
func respondError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	resp := ErrorResponse{
		Code:    code,
		Message: apperrors.DefaultMessageForCode(code),
	}
	var ae *apperrors.AppError
	if errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	c.AbortWithStatusJSON(apperrors.HTTPStatusForCode(code), resp)
}
