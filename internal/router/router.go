package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"meap/internal/database"
	"meap/internal/handlers"
	"meap/internal/middleware"
	"meap/internal/models"
	"meap/internal/services"
	"meap/pkg/response"
)

// SetupRouter 设置路由
func SetupRouter() *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 注册路由
	registerRoutes(router)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine) {

	auth := middleware.NewAuthMiddleware()
	entityCtx := middleware.NewEntityContextMiddleware()
	audit := middleware.NewAuditMiddleware()

	// API路由组
	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// JWT认证路由（无需认证）
		authHandler := handlers.NewAuthHandler(services.NewUserService())
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)          // 用户登录
			authGroup.POST("/refresh", authHandler.RefreshToken) // 刷新Token

			// 获取当前用户完整信息
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
		}

		// 实体路由：登录 -> 实体上下文解析 -> 审计，再按操作叠加权限
		entityHandler := handlers.NewEntityHandler(services.NewEntityService(), services.NewAuditService())
		entities := api.Group("/entities")
		entities.Use(auth.RequireLogin(), entityCtx.ResolveEntity(), audit.Record())
		{
			// 任何登录用户都能创建实体并成为其所有者
			entities.POST("", entityHandler.Create)
			entities.GET("", entityHandler.List)

			// 当前实体详情与业务字段更新
			entities.GET("/current", entityCtx.RequireEntityContext(), entityHandler.Get)
			entities.PUT("/current", entityCtx.RequireEntityPermission(models.PermissionManageSettings), entityHandler.Update)

			// 生命周期操作（仅所有者）
			entities.POST("/current/activate", entityCtx.RequireEntityRole(models.RoleOwner), entityHandler.Activate)
			entities.POST("/current/deactivate", entityCtx.RequireEntityRole(models.RoleOwner), entityHandler.Deactivate)
			entities.DELETE("/current", entityCtx.RequireEntityRole(models.RoleOwner), entityHandler.Delete)

			// 统计与审计流水
			entities.GET("/current/statistics", entityCtx.RequireEntityPermission(models.PermissionViewReports), entityHandler.Statistics)
			entities.GET("/current/audit-logs", entityCtx.RequireEntityPermission(models.PermissionViewReports), entityHandler.AuditLogs)

			// 数据导出（仅所有者）
			entities.GET("/current/export", entityCtx.RequireEntityRole(models.RoleOwner), entityHandler.Export)

			// schema复制（仅超管）
			entities.POST("/clone-schema", auth.RequireSuperuser(), entityHandler.CloneSchema)
		}

		// 成员路由
		membershipHandler := handlers.NewMembershipHandler(services.NewMembershipService())
		memberships := api.Group("/memberships")
		memberships.Use(auth.RequireLogin(), entityCtx.ResolveEntity(), audit.Record())
		{
			// 自己的成员关系，不需要实体上下文
			memberships.GET("/mine", membershipHandler.ListMine)

			// 接受邀请：被邀请人自己操作，权限在服务层裁决
			memberships.POST("/:id/accept", membershipHandler.AcceptInvitation)

			// 实体内的成员管理
			memberships.GET("", entityCtx.RequireEntityContext(), membershipHandler.List)
			memberships.POST("/invite", entityCtx.RequireEntityPermission(models.PermissionManageUsers), membershipHandler.Invite)
			memberships.POST("/bulk-invite", entityCtx.RequireEntityPermission(models.PermissionManageUsers), membershipHandler.BulkInvite)
			memberships.PUT("/:id/role", entityCtx.RequireEntityContext(), membershipHandler.UpdateRole)
			memberships.DELETE("/:id", entityCtx.RequireEntityContext(), membershipHandler.Remove)

			// 所有权转移（仅所有者，服务层再校验一次）
			memberships.POST("/transfer-ownership", entityCtx.RequireEntityRole(models.RoleOwner), membershipHandler.TransferOwnership)
		}

		// 实体配置路由
		settingsHandler := handlers.NewSettingsHandler(services.NewSettingsService())
		settings := api.Group("/entity-settings")
		settings.Use(auth.RequireLogin(), entityCtx.ResolveEntity(), audit.Record())
		{
			settings.GET("", entityCtx.RequireEntityContext(), settingsHandler.Get)
			settings.PUT("", entityCtx.RequireEntityPermission(models.PermissionManageSettings), settingsHandler.Update)
		}
	}
}

func healthCheck(c *gin.Context) {
	status := "ok"
	if err := database.Ping(); err != nil {
		status = "degraded"
	}
	data := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
		"service":   "MEAP",
		"version":   "1.0.0",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
