package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meap/internal/models"
	"meap/pkg/errors"
)

func TestUserAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	svc := NewUserServiceWithDB(db)

	// 用户名登录
	got, err := svc.Authenticate(user.Username, "Test@123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotNil(t, got.LastLoginAt)

	// 邮箱登录
	got, err = svc.Authenticate(user.Email, "Test@123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestUserAuthenticateFailures(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	svc := NewUserServiceWithDB(db)

	// 密码错误
	_, err := svc.Authenticate(user.Username, "wrong-password")
	assertAppErrorCode(t, err, errors.CodeUnauthorized)

	// 用户不存在：与密码错误返回同样的错误，不泄露账号是否存在
	_, err = svc.Authenticate("no-such-user", "Test@123")
	assertAppErrorCode(t, err, errors.CodeUnauthorized)
}

func TestUserAuthenticateInactive(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	svc := NewUserServiceWithDB(db)

	require.NoError(t, db.Model(user).Update("status", models.UserStatusLocked).Error)

	_, err := svc.Authenticate(user.Username, "Test@123")
	assertAppErrorCode(t, err, errors.CodeUnauthorized)
}

func TestUserPasswordHashing(t *testing.T) {
	user := &models.User{}
	require.NoError(t, user.SetPassword("S3cret!"))

	assert.NotEqual(t, "S3cret!", user.PasswordHash)
	assert.True(t, user.CheckPassword("S3cret!"))
	assert.False(t, user.CheckPassword("s3cret!"))
}
