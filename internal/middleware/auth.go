package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/models"
)

const (
	callerIDKey   = "caller_id"
	callerUserKey = "caller_user"
)

// AuthConfig configures the bearer-token middleware.
type AuthConfig struct {
	Secret string
}

// RequireAuth validates the Authorization header, resolves the caller
// and stores it on the request context. Every failure is a plain 401;
// the response does not say which check failed.
func RequireAuth(db *gorm.DB, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Vary", "Authorization")

		authHeader := c.GetHeader("Authorization")
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c)
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c)
			return
		}
		if typ, _ := claims["typ"].(string); typ == "refresh" {
			// Refresh tokens only buy new tokens, never resources.
			abortUnauthorized(c)
			return
		}
		sub, ok := claims["sub"].(string)
		if !ok {
			abortUnauthorized(c)
			return
		}
		var userID uint
		if _, err := fmt.Sscanf(sub, "%d", &userID); err != nil {
			abortUnauthorized(c)
			return
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortUnauthorized(c)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if !user.IsActive {
			abortUnauthorized(c)
			return
		}

		c.Set(callerIDKey, user.ID)
		c.Set(callerUserKey, &user)
		c.Next()
	}
}

// RequireSuperuser gates admin-only routes. It must run after
// RequireAuth.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CallerUser(c)
		if user == nil {
			abortUnauthorized(c)
			return
		}
		if !user.IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "superuser privileges required"})
			return
		}
		c.Next()
	}
}

// CallerID returns the authenticated caller's user ID, or 0 when the
// request is unauthenticated.
func CallerID(c *gin.Context) uint {
	id, _ := c.Get(callerIDKey)
	userID, _ := id.(uint)
	return userID
}

// CallerUser returns the authenticated caller, or nil.
func CallerUser(c *gin.Context) *models.User {
	u, _ := c.Get(callerUserKey)
	user, _ := u.(*models.User)
	return user
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
}
