package observability

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PrometheusHandler exposes handler on a gin route. Without a handler the
// route answers 503 so scrapers notice metrics are off.
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	if handler == nil {
		return func(c *gin.Context) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "metrics are not enabled",
			})
		}
	}
	return gin.WrapH(handler)
}
