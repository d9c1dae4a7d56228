package services

import (
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"meap/internal/database"
	"meap/internal/models"
	"meap/pkg/errors"
	"meap/pkg/logger"
)

// SettingsService 实体配置服务
type SettingsService struct {
	db    *gorm.DB
	log   *logrus.Logger
	audit *AuditService
}

// NewSettingsService 创建配置服务
func NewSettingsService() *SettingsService {
	return NewSettingsServiceWithDB(database.GetDB())
}

// NewSettingsServiceWithDB 使用指定数据库实例创建
func NewSettingsServiceWithDB(db *gorm.DB) *SettingsService {
	return &SettingsService{
		db:    db,
		log:   logger.GetLogger(),
		audit: NewAuditServiceWithDB(db),
	}
}

// GetByEntityID 获取实体配置
func (s *SettingsService) GetByEntityID(entityID uuid.UUID) (*models.EntitySettings, error) {
	var settings models.EntitySettings
	err := s.db.Where("entity_id = ?", entityID).First(&settings).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("实体配置不存在")
		}
		return nil, err
	}
	return &settings, nil
}

// UpdateSettingsParams 配置更新参数，nil表示不变更
type UpdateSettingsParams struct {
	ChartOfAccountsTemplate *string `json:"chart_of_accounts_template"`
	EnableMultiCurrency     *bool   `json:"enable_multi_currency"`
	DefaultPaymentTerms     *int    `json:"default_payment_terms"`

	RequireApprovalForEntries *bool    `json:"require_approval_for_entries"`
	ApprovalThresholdAmount   *float64 `json:"approval_threshold_amount"`

	EmailNotificationsEnabled *bool    `json:"email_notifications_enabled"`
	NotificationEmails        []string `json:"notification_emails"`

	EnablePaymentGateway *bool             `json:"enable_payment_gateway"`
	PaymentGatewayConfig datatypes.JSONMap `json:"payment_gateway_config"`
	EnableERPIntegration *bool             `json:"enable_erp_integration"`
	ERPIntegrationConfig datatypes.JSONMap `json:"erp_integration_config"`

	EnableConsolidatedReporting *bool   `json:"enable_consolidated_reporting"`
	ReportingFrequency          *string `json:"reporting_frequency"`

	EnableTwoFactorAuth   *bool `json:"enable_two_factor_auth"`
	SessionTimeoutMinutes *int  `json:"session_timeout_minutes"`
	PasswordExpiryDays    *int  `json:"password_expiry_days"`

	CustomSettings datatypes.JSONMap `json:"custom_settings"`
}

// Update 更新实体配置并记录审计
func (s *SettingsService) Update(entityID uuid.UUID, params *UpdateSettingsParams, actorID uint) (*models.EntitySettings, error) {
	settings, err := s.GetByEntityID(entityID)
	if err != nil {
		return nil, err
	}

	changes := datatypes.JSONMap{}

	if params.ChartOfAccountsTemplate != nil && *params.ChartOfAccountsTemplate != settings.ChartOfAccountsTemplate {
		changes["chart_of_accounts_template"] = *params.ChartOfAccountsTemplate
		settings.ChartOfAccountsTemplate = *params.ChartOfAccountsTemplate
	}
	if params.EnableMultiCurrency != nil && *params.EnableMultiCurrency != settings.EnableMultiCurrency {
		changes["enable_multi_currency"] = *params.EnableMultiCurrency
		settings.EnableMultiCurrency = *params.EnableMultiCurrency
	}
	if params.DefaultPaymentTerms != nil && *params.DefaultPaymentTerms != settings.DefaultPaymentTerms {
		if *params.DefaultPaymentTerms < 0 {
			return nil, errors.NewValidation("默认付款期限不能为负")
		}
		changes["default_payment_terms"] = *params.DefaultPaymentTerms
		settings.DefaultPaymentTerms = *params.DefaultPaymentTerms
	}
	if params.RequireApprovalForEntries != nil && *params.RequireApprovalForEntries != settings.RequireApprovalForEntries {
		changes["require_approval_for_entries"] = *params.RequireApprovalForEntries
		settings.RequireApprovalForEntries = *params.RequireApprovalForEntries
	}
	if params.ApprovalThresholdAmount != nil && *params.ApprovalThresholdAmount != settings.ApprovalThresholdAmount {
		if *params.ApprovalThresholdAmount < 0 {
			return nil, errors.NewValidation("审批阈值金额不能为负")
		}
		changes["approval_threshold_amount"] = *params.ApprovalThresholdAmount
		settings.ApprovalThresholdAmount = *params.ApprovalThresholdAmount
	}
	if params.EmailNotificationsEnabled != nil && *params.EmailNotificationsEnabled != settings.EmailNotificationsEnabled {
		changes["email_notifications_enabled"] = *params.EmailNotificationsEnabled
		settings.EmailNotificationsEnabled = *params.EmailNotificationsEnabled
	}
	if params.NotificationEmails != nil {
		changes["notification_emails"] = params.NotificationEmails
		settings.NotificationEmails = datatypes.NewJSONSlice(params.NotificationEmails)
	}
	if params.EnablePaymentGateway != nil && *params.EnablePaymentGateway != settings.EnablePaymentGateway {
		changes["enable_payment_gateway"] = *params.EnablePaymentGateway
		settings.EnablePaymentGateway = *params.EnablePaymentGateway
	}
	if params.PaymentGatewayConfig != nil {
		changes["payment_gateway_config"] = "updated"
		settings.PaymentGatewayConfig = params.PaymentGatewayConfig
	}
	if params.EnableERPIntegration != nil && *params.EnableERPIntegration != settings.EnableERPIntegration {
		changes["enable_erp_integration"] = *params.EnableERPIntegration
		settings.EnableERPIntegration = *params.EnableERPIntegration
	}
	if params.ERPIntegrationConfig != nil {
		changes["erp_integration_config"] = "updated"
		settings.ERPIntegrationConfig = params.ERPIntegrationConfig
	}
	if params.EnableConsolidatedReporting != nil && *params.EnableConsolidatedReporting != settings.EnableConsolidatedReporting {
		changes["enable_consolidated_reporting"] = *params.EnableConsolidatedReporting
		settings.EnableConsolidatedReporting = *params.EnableConsolidatedReporting
	}
	if params.ReportingFrequency != nil && *params.ReportingFrequency != settings.ReportingFrequency {
		if !isValidReportingFrequency(*params.ReportingFrequency) {
			return nil, errors.NewValidation("报表频率不合法")
		}
		changes["reporting_frequency"] = *params.ReportingFrequency
		settings.ReportingFrequency = *params.ReportingFrequency
	}
	if params.EnableTwoFactorAuth != nil && *params.EnableTwoFactorAuth != settings.EnableTwoFactorAuth {
		changes["enable_two_factor_auth"] = *params.EnableTwoFactorAuth
		settings.EnableTwoFactorAuth = *params.EnableTwoFactorAuth
	}
	if params.SessionTimeoutMinutes != nil && *params.SessionTimeoutMinutes != settings.SessionTimeoutMinutes {
		if *params.SessionTimeoutMinutes <= 0 {
			return nil, errors.NewValidation("会话超时必须为正数")
		}
		changes["session_timeout_minutes"] = *params.SessionTimeoutMinutes
		settings.SessionTimeoutMinutes = *params.SessionTimeoutMinutes
	}
	if params.PasswordExpiryDays != nil && *params.PasswordExpiryDays != settings.PasswordExpiryDays {
		changes["password_expiry_days"] = *params.PasswordExpiryDays
		settings.PasswordExpiryDays = *params.PasswordExpiryDays
	}
	if params.CustomSettings != nil {
		changes["custom_settings"] = "updated"
		settings.CustomSettings = params.CustomSettings
	}

	if len(changes) == 0 {
		return settings, nil
	}

	if err := s.db.Save(settings).Error; err != nil {
		s.log.Errorf("更新实体配置失败: %v", err)
		return nil, err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    entityID,
		UserID:      &actorID,
		Action:      models.AuditActionSettingsChanged,
		Description: "实体配置已更新",
		Changes:     changes,
	})

	return settings, nil
}

func isValidReportingFrequency(freq string) bool {
	switch freq {
	case "daily", "weekly", "monthly", "quarterly", "annually":
		return true
	}
	return false
}
