package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_IssueAndValidate(t *testing.T) {
	manager := NewJWTManager("test-secret", 30)

	tokenString, err := manager.IssueDefault("alice")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	username, err := manager.Validate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestJWTManager_Parse(t *testing.T) {
	manager := NewJWTManager("test-secret", 30)

	before := time.Now()
	tokenString, err := manager.Issue("bob", 10*time.Minute)
	require.NoError(t, err)

	claims, err := manager.Parse(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)

	// 过期时间应落在请求的有效期附近
	expectedExpiry := before.Add(10 * time.Minute)
	assert.WithinDuration(t, expectedExpiry, claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 30)

	// ttl 为 0 签发的令牌立即过期
	tokenString, err := manager.Issue("alice", 0)
	require.NoError(t, err)

	_, err = manager.Validate(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_NegativeTTLUsesDefault(t *testing.T) {
	manager := NewJWTManager("test-secret", 30)

	tokenString, err := manager.Issue("alice", -1)
	require.NoError(t, err)

	claims, err := manager.Parse(tokenString)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", 30)
	other := NewJWTManager("another-secret", 30)

	tokenString, err := manager.IssueDefault("alice")
	require.NoError(t, err)

	_, err = other.Validate(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_MalformedToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 30)

	for _, tokenString := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := manager.Validate(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}
