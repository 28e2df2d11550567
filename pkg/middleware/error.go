package middleware

import (
	"errors"
	"net/http"

	"donorplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error maps domain errors collected during the request to JSON responses.
// Internal causes stay in the log, never in the body.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var base errutil.BaseError
		if errors.As(last.Err, &base) {
			c.JSON(base.Code.HTTPStatus(), base.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    errutil.StatusInternal,
				"message": "internal error",
			},
		})
	}
}
