package service

import (
	"testing"

	"chatga-go/internal/model"
	"chatga-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeUserRepository 是内存版的 UserRepository，用于单元测试。
type fakeUserRepository struct {
	users  map[string]*model.User
	nextID uint
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[string]*model.User), nextID: 1}
}

func (r *fakeUserRepository) Create(user *model.User) error {
	if _, ok := r.users[user.Username]; ok {
		return gorm.ErrDuplicatedKey
	}
	user.UserID = r.nextID
	r.nextID++
	r.users[user.Username] = user
	return nil
}

func (r *fakeUserRepository) FindByUsername(username string) (*model.User, error) {
	user, ok := r.users[username]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepository) FindByID(id uint) (*model.User, error) {
	for _, user := range r.users {
		if user.UserID == id {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestUserService() UserService {
	return NewUserService(newFakeUserRepository(), token.NewJWTManager("test-secret", 30))
}

func TestUserService_Register(t *testing.T) {
	svc := newTestUserService()

	user, err := svc.Register("alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	// 落库的是哈希，不是明文
	assert.NotEqual(t, "secret123", user.Password)

	// 重复注册同名用户
	_, err = svc.Register("alice", "another-password")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestUserService_Authenticate(t *testing.T) {
	svc := newTestUserService()
	_, err := svc.Register("alice", "secret123")
	require.NoError(t, err)

	t.Run("correct credentials", func(t *testing.T) {
		user, err := svc.Authenticate("alice", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate("alice", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("unknown user", func(t *testing.T) {
		// 用户不存在和密码错误返回同一个错误
		_, err := svc.Authenticate("nobody", "secret123")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}

func TestUserService_Login(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 30)
	svc := NewUserService(newFakeUserRepository(), jwtManager)
	_, err := svc.Register("alice", "secret123")
	require.NoError(t, err)

	accessToken, err := svc.Login("alice", "secret123")
	require.NoError(t, err)

	// 签发的令牌能解析回同一个用户名
	username, err := jwtManager.Validate(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = svc.Login("alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestUserService_GetProfile(t *testing.T) {
	svc := newTestUserService()
	_, err := svc.Register("alice", "secret123")
	require.NoError(t, err)

	user, err := svc.GetProfile("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.GetProfile("nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
