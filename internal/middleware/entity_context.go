package middleware

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"meap/internal/models"
	"meap/internal/services"
	"meap/pkg/response"
)

// 实体上下文的gin context键
const (
	ContextKeyEntity     = "entity"
	ContextKeyEntityID   = "entity_id"
	ContextKeyMembership = "entity_membership"
	HeaderEntityID       = "X-Entity-ID"
	HeaderEntityName     = "X-Entity-Name"
	QueryParamEntityID   = "entity_id"
)

// EntityContextMiddleware 实体上下文中间件
// 在认证之后解析请求指向的实体，并把实体与成员关系挂到上下文
type EntityContextMiddleware struct {
	entityService     *services.EntityService
	membershipService *services.MembershipService
}

func NewEntityContextMiddleware() *EntityContextMiddleware {
	return &EntityContextMiddleware{
		entityService:     services.NewEntityService(),
		membershipService: services.NewMembershipService(),
	}
}

// resolveEntityID 解析请求携带的实体ID，请求头优先于查询参数
func resolveEntityID(c *gin.Context) string {
	if id := c.GetHeader(HeaderEntityID); id != "" {
		return id
	}
	return c.Query(QueryParamEntityID)
}

// ResolveEntity 解析实体上下文
// 未携带实体ID不算错误，后续由RequireEntityContext裁决；
// 携带了ID但实体不存在直接404；非成员（且非超管）降级为无上下文
func (m *EntityContextMiddleware) ResolveEntity() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := resolveEntityID(c)
		if rawID == "" {
			c.Next()
			return
		}

		entityID, err := uuid.Parse(rawID)
		if err != nil {
			response.BadRequest(c, "实体ID格式错误")
			c.Abort()
			return
		}

		entity, err := m.entityService.GetByID(entityID)
		if err != nil {
			response.HandleError(c, err, "查询实体失败")
			c.Abort()
			return
		}

		user, exists := c.Get("user")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}
		userObj := user.(*models.User)

		// 超级管理员不依赖成员关系
		if userObj.IsSuperuser {
			setEntityContext(c, entity, nil)
			c.Next()
			return
		}

		membership, err := m.membershipService.GetActiveMembership(userObj.ID, entityID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				// 非成员视为未携带实体上下文
				c.Next()
				return
			}
			response.ServerError(c, "查询成员关系失败")
			c.Abort()
			return
		}

		setEntityContext(c, entity, membership)
		c.Next()
	}
}

func setEntityContext(c *gin.Context, entity *models.Entity, membership *models.EntityMembership) {
	c.Set(ContextKeyEntity, entity)
	c.Set(ContextKeyEntityID, entity.ID)
	if membership != nil {
		c.Set(ContextKeyMembership, membership)
	}
	c.Header(HeaderEntityID, entity.ID.String())
	c.Header(HeaderEntityName, entity.Name)
}

// GetEntity 从上下文取实体
func GetEntity(c *gin.Context) (*models.Entity, bool) {
	value, exists := c.Get(ContextKeyEntity)
	if !exists {
		return nil, false
	}
	entity, ok := value.(*models.Entity)
	return entity, ok
}

// GetMembership 从上下文取成员关系，超管没有成员关系
func GetMembership(c *gin.Context) (*models.EntityMembership, bool) {
	value, exists := c.Get(ContextKeyMembership)
	if !exists {
		return nil, false
	}
	membership, ok := value.(*models.EntityMembership)
	return membership, ok
}

// RequireEntityContext 要求请求已携带实体上下文
func (m *EntityContextMiddleware) RequireEntityContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetEntity(c); !ok {
			response.BadRequest(c, "缺少实体上下文，请在X-Entity-ID头或entity_id参数中指定实体")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireEntityPermission 要求在当前实体内持有指定能力开关
// 超级管理员直接放行
func (m *EntityContextMiddleware) RequireEntityPermission(permission models.EntityPermission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if _, ok := GetEntity(c); !ok {
			response.BadRequest(c, "缺少实体上下文，请在X-Entity-ID头或entity_id参数中指定实体")
			c.Abort()
			return
		}

		if user.(*models.User).IsSuperuser {
			c.Next()
			return
		}

		membership, ok := GetMembership(c)
		if !ok || !membership.HasPermission(permission) {
			response.Forbidden(c, "没有执行该操作的实体权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireEntityRole 要求在当前实体内持有指定角色之一
func (m *EntityContextMiddleware) RequireEntityRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if _, ok := GetEntity(c); !ok {
			response.BadRequest(c, "缺少实体上下文，请在X-Entity-ID头或entity_id参数中指定实体")
			c.Abort()
			return
		}

		if user.(*models.User).IsSuperuser {
			c.Next()
			return
		}

		membership, ok := GetMembership(c)
		if ok {
			for _, role := range roles {
				if membership.Role == role {
					c.Next()
					return
				}
			}
		}

		response.Forbidden(c, "当前角色无权执行该操作")
		c.Abort()
	}
}

// RequireActiveEntity 要求当前实体处于激活状态
func (m *EntityContextMiddleware) RequireActiveEntity() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, ok := GetEntity(c)
		if !ok {
			response.BadRequest(c, "缺少实体上下文，请在X-Entity-ID头或entity_id参数中指定实体")
			c.Abort()
			return
		}

		if entity.Status != models.EntityStatusActive || !entity.IsActive {
			response.Forbidden(c, "实体未激活，不能执行该操作")
			c.Abort()
			return
		}

		c.Next()
	}
}
