package repository

import (
	"time"

	"github.com/mautops/budget-gin/internal/model"
	"gorm.io/gorm"
)

// EventRepository 事件仓储接口
type EventRepository interface {
	Save(event *model.EventModel) error
	FindByResource(resourceType, resourceID string) ([]*model.EventModel, error)
	FindPending(limit int) ([]*model.EventModel, error)
	UpdateStatus(id, status string, retryCount int, lastError string) error
	CountByStatus() (map[string]int64, error)
}

// eventRepository 事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(event *model.EventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.Save(event).Error
}

// FindByResource 根据资源查找事件
func (r *eventRepository) FindByResource(resourceType, resourceID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

// FindPending 查找待处理的事件
func (r *eventRepository) FindPending(limit int) ([]*model.EventModel, error) {
	var events []*model.EventModel
	query := r.db.Where("status = ?", model.EventStatusPending).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}

// UpdateStatus 更新事件投递状态
func (r *eventRepository) UpdateStatus(id, status string, retryCount int, lastError string) error {
	return r.db.Model(&model.EventModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"retry_count": retryCount,
		"last_error":  lastError,
		"updated_at":  time.Now(),
	}).Error
}

// CountByStatus 按投递状态统计事件数量
func (r *eventRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.Model(&model.EventModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
