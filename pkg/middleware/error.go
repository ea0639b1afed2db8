package middleware

import (
	"net/http"

	"creatorhub-settlement/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error converts errors attached to the gin context into the shared JSON
// error envelope. Unrecognised errors map to a 500.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil || c.Writer.Written() {
			return
		}

		if v, ok := err.Err.(errutil.BaseError); ok {
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": errutil.StatusInternal, "message": err.Error()},
		})
	}
}
