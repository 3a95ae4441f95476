package middleware

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/gin-gonic/gin"
)

// RequireAccess allows the request only when the caller's role may use resource.
// It requires JWTAuth middleware to be applied first.
func RequireAccess(resource domain.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "로그인이 필요합니다", nil)
			c.Abort()
			return
		}
		if !domain.CanAccess(GetRole(c), resource) {
			common.ErrorResponse(c, http.StatusForbidden, "접근 권한이 없습니다", map[string]string{
				"resource": string(resource),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

