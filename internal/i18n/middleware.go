package i18n

import (
	"github.com/gin-gonic/gin"
)

// Middleware picks a localizer from the ?lang= query or Accept-Language header
// and stores it on the request context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loc := NewLocalizer(c.Query("lang"), c.GetHeader("Accept-Language"))
		c.Request = c.Request.WithContext(WithLocalizer(c.Request.Context(), loc))
		c.Next()
	}
}
