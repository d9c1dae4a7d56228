package services

import (
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"meap/internal/database"
	"meap/internal/models"
	"meap/pkg/errors"
)

// UserService 用户服务，支撑登录与成员解析
type UserService struct {
	db *gorm.DB
}

// NewUserService 创建用户服务
func NewUserService() *UserService {
	return &UserService{
		db: database.GetDB(),
	}
}

// NewUserServiceWithDB 使用指定数据库实例创建（测试用）
func NewUserServiceWithDB(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// GetByID 根据ID获取用户
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	return &user, err
}

// GetByEmail 根据邮箱获取用户
func (s *UserService) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	return &user, err
}

// GetByUsername 根据用户名获取用户
func (s *UserService) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	return &user, err
}

// Authenticate 校验用户名（或邮箱）+密码，成功则更新最近登录时间
// 账号不存在和密码错误返回同一个错误，不泄露账号是否注册
func (s *UserService) Authenticate(login, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ? OR email = ?", login, login).First(&user).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewUnauthorized("用户名或密码错误")
		}
		return nil, err
	}

	if !user.CheckPassword(password) {
		return nil, errors.NewUnauthorized("用户名或密码错误")
	}

	if !s.IsActive(&user) {
		return nil, errors.NewUnauthorized("用户已被禁用")
	}

	now := time.Now()
	user.LastLoginAt = &now
	s.db.Model(&user).Update("last_login_at", now)

	return &user, nil
}

// IsActive 检查用户是否激活
func (s *UserService) IsActive(user *models.User) bool {
	return user.Status == models.UserStatusActive
}
