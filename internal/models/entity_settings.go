package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EntitySettings 实体配置，与实体一对一，在实体创建时自动生成一次
type EntitySettings struct {
	UUIDModel
	EntityID uuid.UUID `json:"entity_id" gorm:"type:uuid;not null;uniqueIndex"`

	// 会计设置
	ChartOfAccountsTemplate string `json:"chart_of_accounts_template" gorm:"default:'standard';size:50"`
	EnableMultiCurrency     bool   `json:"enable_multi_currency" gorm:"default:false"`
	DefaultPaymentTerms     int    `json:"default_payment_terms" gorm:"default:30"` // 天数

	// 审批流
	RequireApprovalForEntries bool    `json:"require_approval_for_entries" gorm:"default:true"`
	ApprovalThresholdAmount   float64 `json:"approval_threshold_amount" gorm:"type:numeric(15,2);default:0"`

	// 通知设置
	EmailNotificationsEnabled bool                        `json:"email_notifications_enabled" gorm:"default:true"`
	NotificationEmails        datatypes.JSONSlice[string] `json:"notification_emails" gorm:"type:jsonb"`

	// 集成设置：网关与ERP配置对本服务不透明
	EnablePaymentGateway bool              `json:"enable_payment_gateway" gorm:"default:false"`
	PaymentGatewayConfig datatypes.JSONMap `json:"payment_gateway_config" gorm:"type:jsonb"`
	EnableERPIntegration bool              `json:"enable_erp_integration" gorm:"default:false"`
	ERPIntegrationConfig datatypes.JSONMap `json:"erp_integration_config" gorm:"type:jsonb"`

	// 报表设置
	EnableConsolidatedReporting bool   `json:"enable_consolidated_reporting" gorm:"default:false"`
	ReportingFrequency          string `json:"reporting_frequency" gorm:"default:'monthly';size:20"`

	// 安全设置
	EnableTwoFactorAuth   bool `json:"enable_two_factor_auth" gorm:"default:false"`
	SessionTimeoutMinutes int  `json:"session_timeout_minutes" gorm:"default:60"`
	PasswordExpiryDays    int  `json:"password_expiry_days" gorm:"default:90"`

	CustomSettings datatypes.JSONMap `json:"custom_settings" gorm:"type:jsonb"`

	// 关联
	Entity Entity `json:"entity,omitempty" gorm:"foreignKey:EntityID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (EntitySettings) TableName() string {
	return "entity_settings"
}
