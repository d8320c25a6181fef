package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// Recovery returns middleware that converts handler panics into a structured
// 500 response instead of tearing the connection down.
func Recovery(log logging.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panic recovered",
					logging.String("path", c.Request.URL.Path),
					logging.Any("panic", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    apperrors.CodeInternal,
					"message": apperrors.DefaultMessageForCode(apperrors.CodeInternal),
				})
			}
		}()
		c.Next()
	}
}
