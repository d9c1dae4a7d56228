package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntityAuditLog 实体级审计日志，只追加
// 访问层不暴露任何更新/删除入口
type EntityAuditLog struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primarykey"`
	EntityID uuid.UUID `json:"entity_id" gorm:"type:uuid;not null;index:idx_audit_entity_created,priority:1"`
	UserID   *uint     `json:"user_id"` // 系统触发的动作没有操作人

	Action      string            `json:"action" gorm:"not null;size:100;index"`
	Description string            `json:"description" gorm:"type:text"`
	Changes     datatypes.JSONMap `json:"changes" gorm:"type:jsonb"`

	IPAddress *string `json:"ip_address" gorm:"size:45"`
	UserAgent *string `json:"user_agent" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_audit_entity_created,priority:2,sort:desc"`

	// 关联
	Entity Entity `json:"entity,omitempty" gorm:"foreignKey:EntityID;constraint:OnDelete:CASCADE"`
	User   *User  `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
}

// TableName 表名
func (EntityAuditLog) TableName() string {
	return "entity_audit_logs"
}

// BeforeCreate 创建前生成UUID
func (l *EntityAuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// 审计动作常量
const (
	AuditActionCreated           = "created"
	AuditActionUpdated           = "updated"
	AuditActionDeleted           = "deleted"
	AuditActionActivated         = "activated"
	AuditActionDeactivated       = "deactivated"
	AuditActionSuspended         = "suspended"
	AuditActionSettingsChanged   = "settings_changed"
	AuditActionMemberAdded       = "member_added"
	AuditActionMemberRemoved     = "member_removed"
	AuditActionMemberRoleChanged = "member_role_changed"
)
