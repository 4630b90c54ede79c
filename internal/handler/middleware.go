package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/datahub-healthcheck/internal/dto"
	"github.com/prperemyshlev/datahub-healthcheck/internal/utils"
)

// APIKeyHeader carries the key that allows triggering runs
const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware checks the request key against a bcrypt hash. With an
// empty hash the guarded routes are disabled.
func APIKeyMiddleware(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			c.JSON(http.StatusForbidden, dto.ErrorResponse{
				Error:   "Forbidden",
				Message: "run trigger is disabled",
			})
			c.Abort()
			return
		}

		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			// Accept "Bearer <key>" as well
			parts := strings.Split(c.GetHeader("Authorization"), " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				key = parts[1]
			}
		}

		if key == "" {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "API key is required",
			})
			c.Abort()
			return
		}

		if !utils.CheckAPIKey(key, keyHash) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
