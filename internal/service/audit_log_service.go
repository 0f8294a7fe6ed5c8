package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, userID string, action string, resourceType string, resourceID string, details interface{}) error
	FindByResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	db *gorm.DB
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(db *gorm.DB) AuditLogService {
	return &auditLogService{db: db}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	// 序列化详情
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	info := RequestInfoFrom(ctx)
	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    info.RequestID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		Details:      string(detailsJSON),
		CreatedAt:    time.Now(),
	}

	return repository.NewAuditLogRepository(s.db.WithContext(ctx)).Save(auditLog)
}

// FindByResource 查询资源的审计日志
func (s *auditLogService) FindByResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	return repository.NewAuditLogRepository(s.db.WithContext(ctx)).FindByResource(resourceType, resourceID)
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, resourceType, resourceID, eventType string, payload interface{}) error
}

// notifier 事务提交后的副作用: 审计日志和领域事件
// 两者都是尽力而为,失败只记录日志,不影响已提交的操作
type notifier struct {
	audit  AuditLogService
	events EventPublisher
	logger *logrus.Logger
}

func newNotifier(audit AuditLogService, events EventPublisher, logger *logrus.Logger) notifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return notifier{audit: audit, events: events, logger: logger}
}

// after 记录审计日志并发布事件,eventType 为空时不发布事件
func (n notifier) after(ctx context.Context, actor, action, resourceType, resourceID, eventType string, details interface{}) {
	if n.audit != nil && actor != "" {
		if err := n.audit.RecordAction(ctx, actor, action, resourceType, resourceID, details); err != nil {
			n.logger.WithError(err).WithFields(logrus.Fields{
				"action":        action,
				"resource_type": resourceType,
				"resource_id":   resourceID,
			}).Warn("failed to record audit log")
		}
	}
	if n.events != nil && eventType != "" {
		if err := n.events.Publish(ctx, resourceType, resourceID, eventType, details); err != nil {
			n.logger.WithError(err).WithFields(logrus.Fields{
				"event_type":  eventType,
				"resource_id": resourceID,
			}).Warn("failed to publish event")
		}
	}
}
