package services

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"meap/internal/models"
	"meap/internal/schema"
	"meap/pkg/config"
	"meap/pkg/logger"
)

// SchemaMonitor 实体schema巡检器
// 定期核对注册表里的实体是否都有对应的数据库schema，发现漂移只告警不自动修复
type SchemaMonitor struct {
	db        *gorm.DB
	cron      *cron.Cron
	manager   *schema.Manager
	logger    *logrus.Logger
	isRunning bool
}

// NewSchemaMonitor 创建schema巡检器
func NewSchemaMonitor(db *gorm.DB) *SchemaMonitor {
	return &SchemaMonitor{
		db:        db,
		cron:      cron.New(),
		manager:   schema.NewManager(db),
		logger:    logger.GetLogger(),
		isRunning: false,
	}
}

// Start 启动巡检器
func (m *SchemaMonitor) Start() error {
	if m.isRunning {
		return nil
	}

	spec := config.GetConfig().Monitor.SchemaCheckSpec
	if _, err := m.cron.AddFunc(spec, m.checkAll); err != nil {
		return fmt.Errorf("注册schema巡检任务失败: %v", err)
	}

	m.cron.Start()
	m.isRunning = true

	m.logger.Infof("schema巡检器启动成功，执行计划: %s", spec)
	return nil
}

// Stop 停止巡检器
func (m *SchemaMonitor) Stop() {
	if !m.isRunning {
		return
	}

	m.logger.Info("停止schema巡检器")
	m.cron.Stop()
	m.isRunning = false
}

// checkAll 巡检一轮所有实体
func (m *SchemaMonitor) checkAll() {
	var entities []models.Entity
	if err := m.db.Select("id", "name", "schema_name", "status").Find(&entities).Error; err != nil {
		m.logger.Errorf("schema巡检加载实体列表失败: %v", err)
		return
	}

	missing := 0
	for _, entity := range entities {
		exists, err := m.manager.Exists(entity.SchemaName)
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"entity_id": entity.ID,
				"schema":    entity.SchemaName,
			}).Errorf("schema巡检查询失败: %v", err)
			continue
		}
		if !exists {
			missing++
			m.logger.WithFields(logrus.Fields{
				"entity_id":   entity.ID,
				"entity_name": entity.Name,
				"schema":      entity.SchemaName,
				"status":      entity.Status,
			}).Warn("实体对应的schema不存在")
		}
	}

	if missing > 0 {
		m.logger.Warnf("schema巡检完成：共 %d 个实体，%d 个schema缺失", len(entities), missing)
	} else {
		m.logger.Debugf("schema巡检完成：共 %d 个实体，无缺失", len(entities))
	}
}
