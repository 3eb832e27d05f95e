// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"chatga-go/internal/service"
	"chatga-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责登录与注册两个公开接口。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// Token 处理登录请求，认证通过后返回 bearer 访问令牌。
// 表单字段：username、password。
func (h *AuthHandler) Token(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "用户名和密码不能为空",
		})
		return
	}

	accessToken, err := h.userService.Login(username, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredential) {
			// 不区分用户不存在和密码错误
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Incorrect username or password",
			})
			return
		}
		log.Error("Token: login failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "登录失败",
		})
		return
	}

	log.Infof("User '%s' logged in successfully", username)
	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}

// Register 处理用户注册请求。表单字段：username、password。
func (h *AuthHandler) Register(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "用户名和密码不能为空",
		})
		return
	}

	_, err := h.userService.Register(username, password)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "用户已存在",
			})
			return
		}
		log.Error("Register: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "注册失败",
		})
		return
	}

	log.Infof("User '%s' registered successfully", username)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "注册成功",
	})
}

// Logout 将当前令牌加入黑名单。
func (h *AuthHandler) Logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	tokenString := ""
	const bearerPrefix = "Bearer "
	if len(authHeader) > len(bearerPrefix) {
		tokenString = authHeader[len(bearerPrefix):]
	}

	if err := h.userService.Logout(tokenString); err != nil {
		log.Error("Logout: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "登出失败",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "登出成功",
	})
}
