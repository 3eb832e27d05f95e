// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"time"

	"chatga-go/internal/model"
	"chatga-go/internal/repository"
	"chatga-go/pkg/database"
	"chatga-go/pkg/hash"
	"chatga-go/pkg/token"

	"gorm.io/gorm"
)

// ErrUserExists 表示注册时用户名已被占用。
var ErrUserExists = errors.New("用户已存在")

// ErrInvalidCredential 是认证失败的唯一错误。
// 用户不存在和密码错误返回同一个值，调用方无从区分，避免用户名枚举。
var ErrInvalidCredential = errors.New("invalid credentials")

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(username, password string) (*model.User, error)
	// Login 认证成功后签发访问令牌。
	Login(username, password string) (accessToken string, err error)
	// Authenticate 校验用户名密码，成功返回解析出的用户，失败统一返回
	// ErrInvalidCredential。
	Authenticate(username, password string) (*model.User, error)
	GetProfile(username string) (*model.User, error)
	// Logout 将仍然有效的令牌按剩余有效期加入 Redis 黑名单。
	Logout(tokenString string) error
	// IsTokenRevoked 查询令牌是否已被登出。
	IsTokenRevoked(ctx context.Context, tokenString string) bool
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(username, password string) (*model.User, error) {
	// 1. 检查用户名是否已存在
	_, err := s.userRepo.FindByUsername(username)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码做加盐哈希，明文不落库
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	newUser := &model.User{
		Username: username,
		Password: hashedPassword,
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

// Authenticate 校验凭证。查无此人和密码不匹配走同一条失败路径。
func (s *userService) Authenticate(username, password string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	if !hash.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredential
	}
	return user, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(username, password string) (string, error) {
	user, err := s.Authenticate(username, password)
	if err != nil {
		return "", err
	}
	return s.jwtManager.IssueDefault(user.Username)
}

// GetProfile 根据用户名获取用户详细信息。
func (s *userService) GetProfile(username string) (*model.User, error) {
	return s.userRepo.FindByUsername(username)
}

// Logout 将 token 加入 Redis 黑名单，过期时间取令牌剩余有效期。
func (s *userService) Logout(tokenString string) error {
	claims, err := s.jwtManager.Parse(tokenString)
	if err != nil {
		return err
	}

	// 黑名单只需覆盖令牌的剩余生命周期，到期后 Redis 自动清理。
	expiration := time.Until(claims.ExpiresAt.Time)
	if expiration <= 0 {
		return nil
	}
	return database.RDB.Set(context.Background(), "blacklist:"+tokenString, "true", expiration).Err()
}

// IsTokenRevoked 查询令牌是否在黑名单中。Redis 未初始化时视为未吊销。
func (s *userService) IsTokenRevoked(ctx context.Context, tokenString string) bool {
	if database.RDB == nil {
		return false
	}
	n, err := database.RDB.Exists(ctx, "blacklist:"+tokenString).Result()
	if err != nil {
		return false
	}
	return n > 0
}
