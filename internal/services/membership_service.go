package services

import (
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"meap/internal/database"
	"meap/internal/models"
	"meap/pkg/errors"
	"meap/pkg/logger"
)

// MembershipService 成员与权限服务
type MembershipService struct {
	db           *gorm.DB
	log          *logrus.Logger
	audit        *AuditService
	notification *NotificationService
}

// NewMembershipService 创建成员服务
func NewMembershipService() *MembershipService {
	s := NewMembershipServiceWithDB(database.GetDB())
	s.notification = NewNotificationService()
	return s
}

// NewMembershipServiceWithDB 使用指定数据库实例创建（测试用，不带通知）
func NewMembershipServiceWithDB(db *gorm.DB) *MembershipService {
	return &MembershipService{
		db:    db,
		log:   logger.GetLogger(),
		audit: NewAuditServiceWithDB(db),
	}
}

// PermissionFlags 邀请或改角色时下发的能力开关
type PermissionFlags struct {
	CanManageUsers    bool `json:"can_manage_users"`
	CanManageSettings bool `json:"can_manage_settings"`
	CanViewReports    bool `json:"can_view_reports"`
	CanCreateEntries  bool `json:"can_create_entries"`
	CanApproveEntries bool `json:"can_approve_entries"`
}

// Invite 邀请用户加入实体
// 被邀请人必须已注册；(实体,用户)重复由唯一约束裁决，并发竞争的
// 失败方得到冲突错误而不是静默成功
func (s *MembershipService) Invite(entityID uuid.UUID, inviterID uint, email, role string, flags *PermissionFlags) (*models.EntityMembership, error) {
	if !models.IsValidMembershipRole(role) {
		return nil, errors.NewValidation("成员角色不合法")
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("该邮箱对应的用户不存在")
		}
		return nil, err
	}

	var count int64
	s.db.Model(&models.EntityMembership{}).
		Where("entity_id = ? AND user_id = ?", entityID, user.ID).
		Count(&count)
	if count > 0 {
		return nil, errors.NewConflict("该用户已是实体成员")
	}

	token, err := generateInvitationToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	membership := &models.EntityMembership{
		EntityID:         entityID,
		UserID:           user.ID,
		Role:             role,
		Status:           models.MembershipStatusInvited,
		InvitedByID:      &inviterID,
		InvitationToken:  &token,
		InvitationSentAt: &now,
	}
	if flags != nil {
		membership.CanManageUsers = flags.CanManageUsers
		membership.CanManageSettings = flags.CanManageSettings
		membership.CanViewReports = flags.CanViewReports
		membership.CanCreateEntries = flags.CanCreateEntries
		membership.CanApproveEntries = flags.CanApproveEntries
	} else {
		membership.CanViewReports = true
	}

	if err := s.db.Create(membership).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			// 与并发邀请竞争失败
			return nil, errors.NewConflict("该用户已是实体成员")
		}
		s.log.Errorf("创建成员邀请失败: %v", err)
		return nil, err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    entityID,
		UserID:      &inviterID,
		Action:      models.AuditActionMemberAdded,
		Description: fmt.Sprintf("已邀请 %s 成为 %s", user.Email, role),
	})

	// 邀请邮件入队，结果不阻塞邀请本身
	if s.notification != nil {
		s.notification.SendInvitation(membership, &user)
	}

	return membership, nil
}

// BulkInviteResult 批量邀请的汇总结果
type BulkInviteResult struct {
	Invited int      `json:"invited"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// BulkInvite 按邮箱列表批量邀请，单个失败不影响其余邮箱
func (s *MembershipService) BulkInvite(entityID uuid.UUID, inviterID uint, emails []string, role string, flags *PermissionFlags) *BulkInviteResult {
	result := &BulkInviteResult{Errors: []string{}}

	for _, email := range emails {
		if _, err := s.Invite(entityID, inviterID, email, role, flags); err != nil {
			result.Failed++
			var appErr *errors.AppError
			if stderrors.As(err, &appErr) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", email, appErr.Message))
			} else {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: 邀请失败", email))
			}
			continue
		}
		result.Invited++
	}

	return result
}

// GetByID 根据ID获取成员关系
func (s *MembershipService) GetByID(id uuid.UUID) (*models.EntityMembership, error) {
	var membership models.EntityMembership
	err := s.db.Preload("User").Preload("Entity").First(&membership, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// GetActiveMembership 获取用户在实体内的活跃成员关系
func (s *MembershipService) GetActiveMembership(userID uint, entityID uuid.UUID) (*models.EntityMembership, error) {
	var membership models.EntityMembership
	err := s.db.Where("user_id = ? AND entity_id = ? AND status = ?",
		userID, entityID, models.MembershipStatusActive).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// AcceptInvitation 接受邀请
// 只有被邀请人本人能接受，且状态必须还是invited
func (s *MembershipService) AcceptInvitation(membershipID uuid.UUID, actingUserID uint) (*models.EntityMembership, error) {
	membership, err := s.GetByID(membershipID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("邀请不存在")
		}
		return nil, err
	}

	if membership.UserID != actingUserID {
		return nil, errors.NewForbidden("不能接受他人的邀请")
	}
	if membership.Status != models.MembershipStatusInvited {
		return nil, errors.NewConflict("该邀请已处理，不能重复接受")
	}

	now := time.Now()
	membership.Status = models.MembershipStatusActive
	membership.InvitationAcceptedAt = &now

	if err := s.db.Save(membership).Error; err != nil {
		return nil, err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    membership.EntityID,
		UserID:      &actingUserID,
		Action:      models.AuditActionMemberAdded,
		Description: fmt.Sprintf("%s 已接受邀请", membership.User.Email),
	})

	return membership, nil
}

// requireManageUsers 校验操作者在实体内持有用户管理权限
func (s *MembershipService) requireManageUsers(actingUserID uint, entityID uuid.UUID) error {
	actor, err := s.GetActiveMembership(actingUserID, entityID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.NewForbidden("没有该实体的成员管理权限")
		}
		return err
	}
	if !actor.CanManageUsers {
		return errors.NewForbidden("没有该实体的成员管理权限")
	}
	return nil
}

// UpdateRole 调整成员角色与能力开关
// 所有者角色经此入口不可变更
func (s *MembershipService) UpdateRole(membershipID uuid.UUID, newRole string, flags *PermissionFlags, actingUserID uint) (*models.EntityMembership, error) {
	if !models.IsValidMembershipRole(newRole) {
		return nil, errors.NewValidation("成员角色不合法")
	}

	membership, err := s.GetByID(membershipID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("成员关系不存在")
		}
		return nil, err
	}

	if err := s.requireManageUsers(actingUserID, membership.EntityID); err != nil {
		return nil, err
	}
	if membership.Role == models.RoleOwner {
		return nil, errors.NewConflict("不能变更所有者的角色")
	}

	oldRole := membership.Role
	membership.Role = newRole
	if flags != nil {
		membership.CanManageUsers = flags.CanManageUsers
		membership.CanManageSettings = flags.CanManageSettings
		membership.CanViewReports = flags.CanViewReports
		membership.CanCreateEntries = flags.CanCreateEntries
		membership.CanApproveEntries = flags.CanApproveEntries
	}

	if err := s.db.Save(membership).Error; err != nil {
		return nil, err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    membership.EntityID,
		UserID:      &actingUserID,
		Action:      models.AuditActionMemberRoleChanged,
		Description: fmt.Sprintf("已调整 %s 的角色", membership.User.Email),
		Changes: datatypes.JSONMap{
			"old_role": oldRole,
			"new_role": newRole,
		},
	})

	return membership, nil
}

// Remove 移除成员
// 所有者不可经此入口移除
func (s *MembershipService) Remove(membershipID uuid.UUID, actingUserID uint) error {
	membership, err := s.GetByID(membershipID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.NewNotFound("成员关系不存在")
		}
		return err
	}

	if err := s.requireManageUsers(actingUserID, membership.EntityID); err != nil {
		return err
	}
	if membership.Role == models.RoleOwner {
		return errors.NewConflict("不能移除实体所有者")
	}

	userEmail := membership.User.Email
	if err := s.db.Delete(&models.EntityMembership{}, "id = ?", membershipID).Error; err != nil {
		return err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    membership.EntityID,
		UserID:      &actingUserID,
		Action:      models.AuditActionMemberRemoved,
		Description: fmt.Sprintf("已将 %s 移出实体", userEmail),
	})

	return nil
}

// CheckPermission 检查用户在实体内是否持有指定能力
// 没有活跃成员关系或开关未打开都返回false，不报错
func (s *MembershipService) CheckPermission(userID uint, entityID uuid.UUID, permission models.EntityPermission) bool {
	membership, err := s.GetActiveMembership(userID, entityID)
	if err != nil {
		return false
	}
	return membership.HasPermission(permission)
}

// ListByEntity 列出实体的成员，可按状态过滤
func (s *MembershipService) ListByEntity(entityID uuid.UUID, status string, page, pageSize int) ([]*models.EntityMembership, int64, error) {
	var memberships []*models.EntityMembership
	var total int64

	query := s.db.Model(&models.EntityMembership{}).Where("entity_id = ?", entityID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).
		Preload("User").Preload("InvitedBy").Find(&memberships).Error
	if err != nil {
		return nil, 0, err
	}

	return memberships, total, nil
}

// ListForUser 列出用户自己的成员关系
func (s *MembershipService) ListForUser(userID uint) ([]*models.EntityMembership, error) {
	var memberships []*models.EntityMembership
	err := s.db.Where("user_id = ?", userID).
		Preload("Entity").
		Order("created_at DESC").
		Find(&memberships).Error
	return memberships, err
}

// TransferOwnership 转移实体所有权
// 新所有者提升为owner/active，原所有者降为admin，同一事务内完成
func (s *MembershipService) TransferOwnership(entityID uuid.UUID, fromUserID, toUserID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var current models.EntityMembership
		err := tx.Where("entity_id = ? AND user_id = ? AND role = ? AND status = ?",
			entityID, fromUserID, models.RoleOwner, models.MembershipStatusActive).
			First(&current).Error
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.NewForbidden("只有当前所有者可以转移所有权")
			}
			return err
		}

		var target models.EntityMembership
		err = tx.Where("entity_id = ? AND user_id = ?", entityID, toUserID).First(&target).Error
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			target = models.EntityMembership{
				EntityID: entityID,
				UserID:   toUserID,
				Role:     models.RoleOwner,
				Status:   models.MembershipStatusActive,
			}
			if err := tx.Create(&target).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			target.Role = models.RoleOwner
			target.Status = models.MembershipStatusActive
			if err := tx.Save(&target).Error; err != nil {
				return err
			}
		}

		current.Role = models.RoleAdmin
		if err := tx.Save(&current).Error; err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    entityID,
		UserID:      &fromUserID,
		Action:      models.AuditActionMemberRoleChanged,
		Description: "实体所有权已转移",
		Changes: datatypes.JSONMap{
			"old_owner_id": fromUserID,
			"new_owner_id": toUserID,
		},
	})

	return nil
}

// generateInvitationToken 生成邀请令牌
func generateInvitationToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
