package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// MailQueue 基于Redis的邮件队列
// 外部投递进程从队列右侧取件，发送失败与否不回写本服务
type MailQueue struct {
	client *redis.Client
	prefix string
}

// MailMessage 队列中的邮件消息
type MailMessage struct {
	To       string `json:"to"`        // 收件人地址
	Subject  string `json:"subject"`   // 主题
	Body     string `json:"body"`      // 正文
	From     string `json:"from"`      // 发件人地址
	FromName string `json:"from_name"` // 发件人名称
	Created  int64  `json:"created"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewMailQueue 创建邮件队列实例
func NewMailQueue(config *Config) *MailQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "meap:mail"
	}

	return &MailQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *MailQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *MailQueue) Ping() error {
	ctx := context.Background()
	return q.client.Ping(ctx).Err()
}

// Enqueue 将邮件加入队列（左侧入队）
func (q *MailQueue) Enqueue(to, subject, body, from, fromName string) error {
	ctx := context.Background()

	message := MailMessage{
		To:       to,
		Subject:  subject,
		Body:     body,
		From:     from,
		FromName: fromName,
		Created:  time.Now().Unix(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化邮件消息失败: %v", err)
	}

	if err := q.client.LPush(ctx, q.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("邮件入队失败: %v", err)
	}

	return nil
}

// Length 获取当前队列长度
func (q *MailQueue) Length() (int64, error) {
	ctx := context.Background()
	return q.client.LLen(ctx, q.queueKey()).Result()
}

func (q *MailQueue) queueKey() string {
	return q.prefix + ":outbox"
}
