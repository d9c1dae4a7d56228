package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntityMembership 用户-实体成员关系
// (entity_id, user_id) 全局唯一，重复创建由唯一约束裁决
type EntityMembership struct {
	UUIDModel
	EntityID uuid.UUID `json:"entity_id" gorm:"type:uuid;not null;uniqueIndex:idx_entity_user;index"`
	UserID   uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_entity_user"`

	// 角色与状态
	Role   string `json:"role" gorm:"not null;size:20;index:idx_membership_role_status"`
	Status string `json:"status" gorm:"not null;default:'invited';size:20;index:idx_membership_role_status"`

	// 能力开关：权限空间封闭为这五项
	CanManageUsers    bool `json:"can_manage_users" gorm:"default:false"`
	CanManageSettings bool `json:"can_manage_settings" gorm:"default:false"`
	CanViewReports    bool `json:"can_view_reports" gorm:"default:true"`
	CanCreateEntries  bool `json:"can_create_entries" gorm:"default:false"`
	CanApproveEntries bool `json:"can_approve_entries" gorm:"default:false"`

	// 邀请信息
	InvitedByID          *uint      `json:"invited_by"`
	InvitationToken      *string    `json:"invitation_token" gorm:"unique;size:100;index"`
	InvitationSentAt     *time.Time `json:"invitation_sent_at"`
	InvitationAcceptedAt *time.Time `json:"invitation_accepted_at"`

	Metadata datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`

	// 关联
	Entity    Entity `json:"entity,omitempty" gorm:"foreignKey:EntityID;constraint:OnDelete:CASCADE"`
	User      User   `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	InvitedBy *User  `json:"inviter,omitempty" gorm:"foreignKey:InvitedByID;constraint:OnDelete:SET NULL"`
}

// TableName 表名
func (EntityMembership) TableName() string {
	return "entity_memberships"
}

// 成员角色常量
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleAccountant = "accountant"
	RoleAuditor    = "auditor"
	RoleViewer     = "viewer"
)

// 成员状态常量
const (
	MembershipStatusInvited   = "invited"
	MembershipStatusActive    = "active"
	MembershipStatusInactive  = "inactive"
	MembershipStatusSuspended = "suspended"
)

// ValidMembershipRoles 合法的成员角色集合
var ValidMembershipRoles = []string{
	RoleOwner, RoleAdmin, RoleManager, RoleAccountant, RoleAuditor, RoleViewer,
}

// IsValidMembershipRole 检查角色是否合法
func IsValidMembershipRole(role string) bool {
	for _, r := range ValidMembershipRoles {
		if r == role {
			return true
		}
	}
	return false
}

// EntityPermission 成员能力开关的封闭枚举
type EntityPermission string

const (
	PermissionManageUsers    EntityPermission = "can_manage_users"
	PermissionManageSettings EntityPermission = "can_manage_settings"
	PermissionViewReports    EntityPermission = "can_view_reports"
	PermissionCreateEntries  EntityPermission = "can_create_entries"
	PermissionApproveEntries EntityPermission = "can_approve_entries"
)

// HasPermission 按枚举取对应开关，未知权限一律false
func (m *EntityMembership) HasPermission(permission EntityPermission) bool {
	switch permission {
	case PermissionManageUsers:
		return m.CanManageUsers
	case PermissionManageSettings:
		return m.CanManageSettings
	case PermissionViewReports:
		return m.CanViewReports
	case PermissionCreateEntries:
		return m.CanCreateEntries
	case PermissionApproveEntries:
		return m.CanApproveEntries
	default:
		return false
	}
}

// GrantAllPermissions 打开全部能力开关
func (m *EntityMembership) GrantAllPermissions() {
	m.CanManageUsers = true
	m.CanManageSettings = true
	m.CanViewReports = true
	m.CanCreateEntries = true
	m.CanApproveEntries = true
}

// BeforeSave 所有者角色在每次写入时强制持有全部能力开关
func (m *EntityMembership) BeforeSave(tx *gorm.DB) error {
	if m.Role == RoleOwner {
		m.GrantAllPermissions()
	}
	return nil
}
