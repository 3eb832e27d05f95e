// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"chatga-go/internal/service"
	"chatga-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// 认证失败统一返回这一句，不区分缺失、过期、签名不符或用户已不存在。
const authFailedMessage = "Could not validate credentials"

// AuthMiddleware 创建一个 Gin 中间件，作为受保护路由的认证闸门。
// 它从请求头提取 bearer token，验证签名与有效期，确认未被登出，
// 并把重新解析出的存活用户存入上下文；任何一步失败都在业务逻辑前拦截。
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": authFailedMessage,
			})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		username, err := jwtManager.Validate(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": authFailedMessage,
			})
			return
		}

		if userService.IsTokenRevoked(c.Request.Context(), tokenString) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": authFailedMessage,
			})
			return
		}

		// 令牌签发后用户可能已被删除，必须重新解析为存活用户
		user, err := userService.GetProfile(username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": authFailedMessage,
			})
			return
		}

		c.Set("user", user)
		c.Next()
	}
}
