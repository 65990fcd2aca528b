package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/logger"
)

// AdminAuditor records operator activity. services.AuditServicer satisfies it.
type AdminAuditor interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}

// AdminKeyMiddleware guards operator routes with the shared X-API-Key.
// Rejected attempts are logged and, when audit is non-nil, written to the
// audit trail with the caller's IP and route.
func AdminKeyMiddleware(apiKey string, audit AdminAuditor) gin.HandlerFunc {
	log := logger.Named("admin")
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrAdminNotConfigured)
			return
		}

		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			c.Next()
			return
		}

		route := c.Request.Method + " " + c.FullPath()
		log.Warnw("rejected admin request",
			"ip", c.ClientIP(),
			"route", route,
			"key_present", key != "",
		)
		if audit != nil {
			audit.Log("", "ADMIN_AUTH_FAILED", "admin", "", c.ClientIP(), map[string]interface{}{
				"route":       route,
				"key_present": key != "",
			})
		}
		abortWithError(c, apperrors.ErrInvalidAPIKey)
	}
}
