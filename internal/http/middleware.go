package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/aiforge/aiforge/internal/models"
	"github.com/aiforge/aiforge/internal/ratelimit"
	"github.com/aiforge/aiforge/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// bearerToken extracts the JWT from the Authorization header, falling back
// to the token query parameter for WebSocket clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != authHeader {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(c.Query("token"))
}

// UserAuthMiddleware validates user JWTs and loads the user into context.
func UserAuthMiddleware(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		claims, errJWT := security.ParseToken(jwtSecret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("isAdmin", user.IsAdmin)
		c.Next()
	}
}

// AdminOnlyMiddleware rejects non-admin users. Must run after auth.
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, _ := c.Get("isAdmin"); isAdmin != true {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware enforces the per-user generation rate limit.
// A nil limiter or a limiter backend error fails open.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		userID, exists := c.Get("userID")
		uid, ok := userID.(uint64)
		if !exists || !ok {
			c.Next()
			return
		}

		allowed, remaining, errAllow := limiter.Allow(c.Request.Context(), uid)
		if errAllow != nil {
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
