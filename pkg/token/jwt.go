// Package token 提供了用于签发和验证 JSON Web Tokens (JWT) 的功能。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 表示 token 签名不符、已过期或结构不合法。
// 对调用方只暴露这一种失败，不区分具体原因。
var ErrInvalidToken = errors.New("invalid token")

// JWTManager 负责管理访问令牌的签发和验证。
// 令牌是无状态的：subject 绑定用户名，exp 在签发时固定，没有吊销列表。
type JWTManager struct {
	secretKey  []byte        // 用于签名和验证 token 的密钥，进程级配置
	defaultTTL time.Duration // 默认的令牌有效期
}

// Claims 定义了访问令牌携带的声明。
// 只使用标准声明：Subject 存放用户名，ExpiresAt 存放过期时间。
type Claims struct {
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
// expireMinutes 是默认令牌有效期（分钟）。
func NewJWTManager(secret string, expireMinutes int) *JWTManager {
	return &JWTManager{
		secretKey:  []byte(secret),
		defaultTTL: time.Duration(expireMinutes) * time.Minute,
	}
}

// Issue 为指定用户名签发一个有效期为 ttl 的访问令牌。
// ttl 为负值时退回默认有效期；ttl 为 0 签发的是立即过期的令牌。
func (m *JWTManager) Issue(username string, ttl time.Duration) (string, error) {
	if ttl < 0 {
		ttl = m.defaultTTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secretKey)
}

// IssueDefault 使用默认有效期签发令牌。
func (m *JWTManager) IssueDefault(username string) (string, error) {
	return m.Issue(username, m.defaultTTL)
}

// Validate 验证给定的 token 字符串并返回其绑定的用户名。
// 验证只依赖签名密钥，不查库；调用方随后仍需将用户名解析为存活用户。
func (m *JWTManager) Validate(tokenString string) (string, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Parse 验证令牌并返回完整的声明，供需要过期时间等信息的调用方使用。
func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
