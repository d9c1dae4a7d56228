package database

import (
	"meap/internal/models"
	"meap/pkg/logger"
)

// Migrate 执行数据库迁移
// 实体、成员、设置、审计日志等共享表一律落在public schema，
// 各实体的业务表由Schema Store在其独立schema中管理
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
		&models.User{},
		&models.Entity{},
		&models.EntityMembership{},
		&models.EntitySettings{},
		&models.EntityAuditLog{},
	)

	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")

	// 种子数据初始化将在 main.go 中单独调用，避免循环依赖

	return nil
}
