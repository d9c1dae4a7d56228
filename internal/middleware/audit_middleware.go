package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"meap/internal/models"
	"meap/internal/services"
)

// AuditMiddleware 实体操作审计中间件
// 只记录改状态的请求（POST/PUT/PATCH/DELETE），且仅在业务处理成功后落库
type AuditMiddleware struct {
	auditService *services.AuditService
}

func NewAuditMiddleware() *AuditMiddleware {
	return &AuditMiddleware{
		auditService: services.NewAuditService(),
	}
}

// 需要审计的HTTP方法
var auditedMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Record 请求完成后写审计日志
func (m *AuditMiddleware) Record() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !auditedMethods[c.Request.Method] {
			return
		}
		// 失败请求不进审计流水：HTTP状态或响应体里的业务码任一报错都算失败
		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		if code, exists := c.Get("business_code"); exists {
			if bc, ok := code.(int); ok && bc >= http.StatusBadRequest {
				return
			}
		}

		entity, ok := GetEntity(c)
		if !ok {
			return
		}

		var userID *uint
		if id, exists := c.Get("user_id"); exists {
			uid := id.(uint)
			userID = &uid
		}

		ip := clientIP(c)
		userAgent := c.Request.UserAgent()

		rec := &services.AuditRecord{
			EntityID:    entity.ID,
			UserID:      userID,
			Action:      actionForMethod(c.Request.Method),
			Description: fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path),
			Changes: datatypes.JSONMap{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"status": c.Writer.Status(),
			},
			IPAddress: ip,
			UserAgent: userAgent,
		}
		m.auditService.RecordQuietly(rec)
	}
}

// clientIP 优先取X-Forwarded-For首个地址
func clientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	return c.ClientIP()
}

func actionForMethod(method string) string {
	switch method {
	case http.MethodPost:
		return models.AuditActionCreated
	case http.MethodDelete:
		return models.AuditActionDeleted
	default:
		return models.AuditActionUpdated
	}
}
