package middleware

import (
	"errors"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/pkg/jwt"
	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
	ctxName   = "name"
)

// JWTAuth verifies the identity provider's token and stores user id and role.
// WebSocket clients may pass the token as ?token= since browsers cannot set headers on upgrade.
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			common.ErrorResponse(c, 401, "Missing authorization header", nil)
			c.Abort()
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, 401, "Token expired", nil)
			} else {
				common.ErrorResponse(c, 401, "Invalid token", nil)
			}
			c.Abort()
			return
		}

		role := domain.Role(claims.Role)
		if !role.Valid() {
			common.ErrorResponse(c, 401, "Unknown role", nil)
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, role)
		c.Set(ctxName, claims.Name)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" && c.IsWebsocket() {
			return token, true
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return ""
	}
	if str, ok := userID.(string); ok {
		return str
	}
	return ""
}

// GetRole extracts the caller's role from context
func GetRole(c *gin.Context) domain.Role {
	role, exists := c.Get(ctxRole)
	if !exists {
		return ""
	}
	if r, ok := role.(domain.Role); ok {
		return r
	}
	return ""
}

// GetActor returns the caller as a profile carrying id and role
func GetActor(c *gin.Context) *domain.Profile {
	name, _ := c.Get(ctxName)
	n, _ := name.(string)
	return &domain.Profile{ID: GetUserID(c), Role: GetRole(c), Name: n}
}
