package main

import (
	"fmt"

	"gorm.io/gorm"

	"meap/internal/database"
	"meap/internal/models"
	"meap/pkg/logger"
)

// seedData 初始化种子数据
func seedData() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	db := database.GetDB()

	// 创建默认超级管理员
	if err := createDefaultSuperuser(db); err != nil {
		return fmt.Errorf("创建默认超级管理员失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDefaultSuperuser 创建默认超级管理员用户
func createDefaultSuperuser(db *gorm.DB) error {
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count > 0 {
		logger.GetLogger().Info("默认超级管理员已存在，跳过创建")
		return nil
	}

	admin := &models.User{
		Username:    "admin",
		Email:       "admin@meap.local",
		Name:        "系统管理员",
		Status:      models.UserStatusActive,
		IsSuperuser: true,
	}
	// 默认密码仅用于首次部署，上线后必须修改
	if err := admin.SetPassword("Admin@123"); err != nil {
		return err
	}

	if err := db.Create(admin).Error; err != nil {
		return err
	}

	logger.GetLogger().Info("默认超级管理员创建成功: admin / Admin@123")
	return nil
}
