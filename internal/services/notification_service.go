package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"meap/internal/database"
	"meap/internal/models"
	"meap/pkg/config"
	"meap/pkg/logger"
	"meap/pkg/queue"
)

// NotificationService 通知服务，邮件统一经Redis队列投递
type NotificationService struct {
	queue *queue.MailQueue
	log   *logrus.Logger
	cfg   *config.Config
}

// NewNotificationService 创建通知服务
func NewNotificationService() *NotificationService {
	return &NotificationService{
		queue: database.GetMailQueue(),
		log:   logger.GetLogger(),
		cfg:   config.GetConfig(),
	}
}

// SendInvitation 发送实体邀请邮件
// 入队失败只记日志，不影响邀请流程
func (s *NotificationService) SendInvitation(membership *models.EntityMembership, user *models.User) {
	if s.queue == nil {
		return
	}

	var entityName string
	if membership.Entity.Name != "" {
		entityName = membership.Entity.Name
	} else {
		entityName = membership.EntityID.String()
	}

	subject := fmt.Sprintf("邀请您加入 %s", entityName)
	body := buildInvitationBody(entityName, membership)

	if err := s.queue.Enqueue(user.Email, subject, body, s.cfg.Mail.FromAddress, s.cfg.Mail.FromName); err != nil {
		s.log.WithFields(logrus.Fields{
			"entity_id": membership.EntityID,
			"user_id":   user.ID,
		}).Errorf("邀请邮件入队失败: %v", err)
	}
}

func buildInvitationBody(entityName string, membership *models.EntityMembership) string {
	token := ""
	if membership.InvitationToken != nil {
		token = *membership.InvitationToken
	}
	return fmt.Sprintf(
		"您被邀请以 %s 角色加入实体 %s。\n\n请登录系统并使用以下令牌接受邀请：%s\n",
		membership.Role, entityName, token,
	)
}
