package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"meap/internal/middleware"
	"meap/internal/services"
	"meap/pkg/pagination"
	"meap/pkg/response"
)

type MembershipHandler struct {
	membershipService *services.MembershipService
}

func NewMembershipHandler(membershipService *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{
		membershipService: membershipService,
	}
}

// List 列出当前实体成员
func (h *MembershipHandler) List(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	params := pagination.ParsePageParams(c)
	status := c.Query("status")

	memberships, total, err := h.membershipService.ListByEntity(entity.ID, status, params.Page, params.PageSize)
	if err != nil {
		response.HandleError(c, err, "查询成员列表失败")
		return
	}

	response.SuccessWithPage(c, memberships, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

// ListMine 列出当前用户自己的成员关系（不依赖实体上下文）
func (h *MembershipHandler) ListMine(c *gin.Context) {
	memberships, err := h.membershipService.ListForUser(c.GetUint("user_id"))
	if err != nil {
		response.HandleError(c, err, "查询成员关系失败")
		return
	}
	response.Success(c, memberships)
}

type InviteRequest struct {
	Email       string                    `json:"email" binding:"required,email"`
	Role        string                    `json:"role" binding:"required"`
	Permissions *services.PermissionFlags `json:"permissions"`
}

// Invite 邀请用户加入当前实体
func (h *MembershipHandler) Invite(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	membership, err := h.membershipService.Invite(entity.ID, c.GetUint("user_id"), req.Email, req.Role, req.Permissions)
	if err != nil {
		response.HandleError(c, err, "邀请成员失败")
		return
	}

	response.SuccessWithMessage(c, "邀请已发送", membership)
}

type BulkInviteRequest struct {
	Emails      []string                  `json:"emails" binding:"required,min=1,dive,email"`
	Role        string                    `json:"role" binding:"required"`
	Permissions *services.PermissionFlags `json:"permissions"`
}

// BulkInvite 批量邀请用户加入当前实体
func (h *MembershipHandler) BulkInvite(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	var req BulkInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result := h.membershipService.BulkInvite(entity.ID, c.GetUint("user_id"), req.Emails, req.Role, req.Permissions)
	response.Success(c, result)
}

// AcceptInvitation 接受邀请
func (h *MembershipHandler) AcceptInvitation(c *gin.Context) {
	membershipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "成员ID格式错误")
		return
	}

	membership, err := h.membershipService.AcceptInvitation(membershipID, c.GetUint("user_id"))
	if err != nil {
		response.HandleError(c, err, "接受邀请失败")
		return
	}

	response.SuccessWithMessage(c, "已加入实体", membership)
}

type UpdateRoleRequest struct {
	Role        string                    `json:"role" binding:"required"`
	Permissions *services.PermissionFlags `json:"permissions"`
}

// UpdateRole 调整成员角色
func (h *MembershipHandler) UpdateRole(c *gin.Context) {
	membershipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "成员ID格式错误")
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	membership, err := h.membershipService.UpdateRole(membershipID, req.Role, req.Permissions, c.GetUint("user_id"))
	if err != nil {
		response.HandleError(c, err, "调整成员角色失败")
		return
	}

	response.SuccessWithMessage(c, "成员角色已更新", membership)
}

// Remove 移除成员
func (h *MembershipHandler) Remove(c *gin.Context) {
	membershipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "成员ID格式错误")
		return
	}

	if err := h.membershipService.Remove(membershipID, c.GetUint("user_id")); err != nil {
		response.HandleError(c, err, "移除成员失败")
		return
	}

	response.SuccessWithMessage(c, "成员已移除", nil)
}

type TransferOwnershipRequest struct {
	ToUserID uint `json:"to_user_id" binding:"required"`
}

// TransferOwnership 转移所有权
func (h *MembershipHandler) TransferOwnership(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	var req TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.membershipService.TransferOwnership(entity.ID, c.GetUint("user_id"), req.ToUserID); err != nil {
		response.HandleError(c, err, "转移所有权失败")
		return
	}

	response.SuccessWithMessage(c, "所有权已转移", nil)
}
