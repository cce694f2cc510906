package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminMiddleware guards admin routes with a key checked against a bcrypt
// hash. Only the hash is ever configured.
type AdminMiddleware struct {
	keyHash []byte
}

// NewAdminMiddleware creates the admin guard. An empty hash disables every
// admin route.
func NewAdminMiddleware(keyHash string) *AdminMiddleware {
	return &AdminMiddleware{keyHash: []byte(keyHash)}
}

// RequireAdminAuth accepts the key as a bearer token or in X-API-Key.
func (am *AdminMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(am.keyHash) == 0 {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Admin API disabled",
				"message": "No admin key is configured",
			})
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			key, _ = bearerToken(c.GetHeader("Authorization"))
		}
		if key != "" && am.ValidateAdminKey(key) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Valid admin API key required for this endpoint",
		})
	}
}

// ValidateAdminKey reports whether key matches the configured hash.
func (am *AdminMiddleware) ValidateAdminKey(key string) bool {
	if len(am.keyHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(am.keyHash, []byte(key)) == nil
}
