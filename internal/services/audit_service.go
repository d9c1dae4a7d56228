package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"meap/internal/database"
	"meap/internal/models"
	"meap/pkg/logger"
)

// AuditService 审计日志服务：只有追加和查询，没有更新/删除入口
type AuditService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewAuditService 创建审计日志服务
func NewAuditService() *AuditService {
	return &AuditService{
		db:  database.GetDB(),
		log: logger.GetLogger(),
	}
}

// NewAuditServiceWithDB 使用指定数据库实例创建（测试用）
func NewAuditServiceWithDB(db *gorm.DB) *AuditService {
	return &AuditService{
		db:  db,
		log: logger.GetLogger(),
	}
}

// AuditRecord 一条待写入的审计记录
type AuditRecord struct {
	EntityID    uuid.UUID
	UserID      *uint
	Action      string
	Description string
	Changes     datatypes.JSONMap
	IPAddress   string
	UserAgent   string
}

// Record 追加一条审计日志
// 作为副作用调用时，写入失败只记operational log，不影响主操作
func (s *AuditService) Record(rec *AuditRecord) error {
	entry := &models.EntityAuditLog{
		EntityID:    rec.EntityID,
		UserID:      rec.UserID,
		Action:      rec.Action,
		Description: rec.Description,
		Changes:     rec.Changes,
	}
	if rec.IPAddress != "" {
		entry.IPAddress = &rec.IPAddress
	}
	if rec.UserAgent != "" {
		entry.UserAgent = &rec.UserAgent
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.log.WithFields(logrus.Fields{
			"entity_id": rec.EntityID,
			"action":    rec.Action,
		}).Errorf("写入审计日志失败: %v", err)
		return err
	}
	return nil
}

// RecordQuietly 副作用场景的写入：失败只记日志，不向调用方返回错误
func (s *AuditService) RecordQuietly(rec *AuditRecord) {
	_ = s.Record(rec)
}

// ListByEntity 按实体查询审计日志，支持动作和时间范围过滤，默认新的在前
func (s *AuditService) ListByEntity(entityID uuid.UUID, action string, from, to *time.Time, page, pageSize int) ([]*models.EntityAuditLog, int64, error) {
	var logs []*models.EntityAuditLog
	var total int64

	query := s.db.Model(&models.EntityAuditLog{}).Where("entity_id = ?", entityID)

	if action != "" {
		query = query.Where("action = ?", action)
	}
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).
		Preload("User").Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
