package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Origin rejects browser connections to the websocket route whose Origin
// header is not in the allow list. An empty list allows everything (dev).
func Origin(allowed []string) gin.HandlerFunc {
	allow := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		allow[o] = struct{}{}
	}
	return func(c *gin.Context) {
		if len(allow) == 0 {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if origin == "" {
			// non-browser client, let auth decide
			c.Next()
			return
		}
		if _, ok := allow[origin]; !ok {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
