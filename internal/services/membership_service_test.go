package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meap/internal/models"
	"meap/pkg/errors"
)

func assertAppErrorCode(t *testing.T, err error, code int) {
	t.Helper()
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestMembershipInvite(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	invitee := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	membership, err := svc.Invite(entity.ID, owner.ID, invitee.Email, models.RoleAccountant, nil)
	require.NoError(t, err)

	assert.Equal(t, models.MembershipStatusInvited, membership.Status)
	assert.Equal(t, models.RoleAccountant, membership.Role)
	require.NotNil(t, membership.InvitationToken)
	assert.Len(t, *membership.InvitationToken, 64)
	require.NotNil(t, membership.InvitedByID)
	assert.Equal(t, owner.ID, *membership.InvitedByID)
	assert.NotNil(t, membership.InvitationSentAt)

	// 默认只开报表查看
	assert.True(t, membership.CanViewReports)
	assert.False(t, membership.CanManageUsers)
	assert.False(t, membership.CanApproveEntries)
}

func TestMembershipInviteUnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	_, err := svc.Invite(entity.ID, owner.ID, "nobody@example.com", models.RoleViewer, nil)
	assertAppErrorCode(t, err, errors.CodeNotFound)
}

func TestMembershipInviteInvalidRole(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	_, err := svc.Invite(entity.ID, owner.ID, owner.Email, "superhero", nil)
	assertAppErrorCode(t, err, errors.CodeInvalidParam)
}

func TestMembershipBulkInvite(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	first := createTestUser(t, db)
	second := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	result := svc.BulkInvite(entity.ID, owner.ID,
		[]string{first.Email, second.Email, "ghost@example.com"},
		models.RoleViewer, nil)

	assert.Equal(t, 2, result.Invited)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ghost@example.com")

	// 成功的两封邀请确实落库
	var count int64
	db.Model(&models.EntityMembership{}).
		Where("entity_id = ? AND status = ?", entity.ID, models.MembershipStatusInvited).
		Count(&count)
	assert.EqualValues(t, 2, count)

	// 重复批量邀请全部冲突
	again := svc.BulkInvite(entity.ID, owner.ID,
		[]string{first.Email, second.Email}, models.RoleViewer, nil)
	assert.Equal(t, 0, again.Invited)
	assert.Equal(t, 2, again.Failed)
}

func TestMembershipInviteDuplicateConflicts(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	invitee := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	_, err := svc.Invite(entity.ID, owner.ID, invitee.Email, models.RoleViewer, nil)
	require.NoError(t, err)

	_, err = svc.Invite(entity.ID, owner.ID, invitee.Email, models.RoleViewer, nil)
	assertAppErrorCode(t, err, errors.CodeConflict)

	// 创建者本人已经是所有者成员
	_, err = svc.Invite(entity.ID, owner.ID, owner.Email, models.RoleViewer, nil)
	assertAppErrorCode(t, err, errors.CodeConflict)
}

func TestMembershipAcceptInvitation(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	invitee := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	membership, err := svc.Invite(entity.ID, owner.ID, invitee.Email, models.RoleAccountant, nil)
	require.NoError(t, err)

	// 别人不能替被邀请人接受
	_, err = svc.AcceptInvitation(membership.ID, owner.ID)
	assertAppErrorCode(t, err, errors.CodeForbidden)

	accepted, err := svc.AcceptInvitation(membership.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusActive, accepted.Status)
	assert.NotNil(t, accepted.InvitationAcceptedAt)

	// 已处理的邀请不能重复接受
	_, err = svc.AcceptInvitation(membership.ID, invitee.ID)
	assertAppErrorCode(t, err, errors.CodeConflict)
}

func TestMembershipOwnerFlagsEnforced(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)

	// 试图关掉所有者的开关：BeforeSave钩子强制恢复
	var membership models.EntityMembership
	require.NoError(t, db.Where("entity_id = ? AND user_id = ?", entity.ID, owner.ID).First(&membership).Error)
	membership.CanManageUsers = false
	membership.CanApproveEntries = false
	require.NoError(t, db.Save(&membership).Error)

	var reloaded models.EntityMembership
	require.NoError(t, db.First(&reloaded, "id = ?", membership.ID).Error)
	assert.True(t, reloaded.CanManageUsers)
	assert.True(t, reloaded.CanApproveEntries)
}

func TestMembershipUpdateRole(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	invitee := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	membership, err := svc.Invite(entity.ID, owner.ID, invitee.Email, models.RoleViewer, nil)
	require.NoError(t, err)

	updated, err := svc.UpdateRole(membership.ID, models.RoleManager, &PermissionFlags{
		CanViewReports:   true,
		CanCreateEntries: true,
	}, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, updated.Role)
	assert.True(t, updated.CanCreateEntries)
	assert.False(t, updated.CanManageUsers)
}

func TestMembershipUpdateRoleRequiresManageUsers(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	member := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	membership, err := svc.Invite(entity.ID, owner.ID, member.Email, models.RoleViewer, nil)
	require.NoError(t, err)
	_, err = svc.AcceptInvitation(membership.ID, member.ID)
	require.NoError(t, err)

	// 普通成员没有can_manage_users，不能改角色
	_, err = svc.UpdateRole(membership.ID, models.RoleAdmin, nil, member.ID)
	assertAppErrorCode(t, err, errors.CodeForbidden)
}

func TestMembershipOwnerImmutable(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	var ownerMembership models.EntityMembership
	require.NoError(t, db.Where("entity_id = ? AND user_id = ?", entity.ID, owner.ID).First(&ownerMembership).Error)

	// 所有者的角色不能变更，也不能被移除
	_, err := svc.UpdateRole(ownerMembership.ID, models.RoleAdmin, nil, owner.ID)
	assertAppErrorCode(t, err, errors.CodeConflict)

	err = svc.Remove(ownerMembership.ID, owner.ID)
	assertAppErrorCode(t, err, errors.CodeConflict)
}

func TestMembershipRemove(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	member := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	membership, err := svc.Invite(entity.ID, owner.ID, member.Email, models.RoleViewer, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(membership.ID, owner.ID))

	var count int64
	db.Model(&models.EntityMembership{}).Where("id = ?", membership.ID).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestMembershipCheckPermission(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	invitee := createTestUser(t, db)
	outsider := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	// 所有者持有全部能力
	assert.True(t, svc.CheckPermission(owner.ID, entity.ID, models.PermissionManageUsers))
	assert.True(t, svc.CheckPermission(owner.ID, entity.ID, models.PermissionApproveEntries))

	// 非成员一律false
	assert.False(t, svc.CheckPermission(outsider.ID, entity.ID, models.PermissionViewReports))

	// invited状态还不算活跃成员
	membership, err := svc.Invite(entity.ID, owner.ID, invitee.Email, models.RoleAccountant, nil)
	require.NoError(t, err)
	assert.False(t, svc.CheckPermission(invitee.ID, entity.ID, models.PermissionViewReports))

	_, err = svc.AcceptInvitation(membership.ID, invitee.ID)
	require.NoError(t, err)
	assert.True(t, svc.CheckPermission(invitee.ID, entity.ID, models.PermissionViewReports))
	assert.False(t, svc.CheckPermission(invitee.ID, entity.ID, models.PermissionManageUsers))
}

func TestMembershipTransferOwnership(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	successor := createTestUser(t, db)
	entity := createTestEntity(t, db, owner)
	svc := NewMembershipServiceWithDB(db)

	membership, err := svc.Invite(entity.ID, owner.ID, successor.Email, models.RoleAdmin, nil)
	require.NoError(t, err)
	_, err = svc.AcceptInvitation(membership.ID, successor.ID)
	require.NoError(t, err)

	// 非所有者不能发起转移
	err = svc.TransferOwnership(entity.ID, successor.ID, owner.ID)
	assertAppErrorCode(t, err, errors.CodeForbidden)

	require.NoError(t, svc.TransferOwnership(entity.ID, owner.ID, successor.ID))

	var newOwner models.EntityMembership
	require.NoError(t, db.Where("entity_id = ? AND user_id = ?", entity.ID, successor.ID).First(&newOwner).Error)
	assert.Equal(t, models.RoleOwner, newOwner.Role)
	assert.True(t, newOwner.CanManageUsers)

	var previous models.EntityMembership
	require.NoError(t, db.Where("entity_id = ? AND user_id = ?", entity.ID, owner.ID).First(&previous).Error)
	assert.Equal(t, models.RoleAdmin, previous.Role)

	// 转移记入审计流水，留存新旧所有者
	var log models.EntityAuditLog
	require.NoError(t, db.Where("entity_id = ? AND action = ?", entity.ID, models.AuditActionMemberRoleChanged).
		Order("created_at DESC").First(&log).Error)
	assert.EqualValues(t, owner.ID, log.Changes["old_owner_id"])
	assert.EqualValues(t, successor.ID, log.Changes["new_owner_id"])
}
