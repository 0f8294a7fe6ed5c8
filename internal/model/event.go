package model

import (
	"errors"
	"time"
)

// 事件投递状态
const (
	EventStatusPending = "pending"
	EventStatusSuccess = "success"
	EventStatusFailed  = "failed"
)

// EventModel 事件发件箱记录
type EventModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ResourceType string    `gorm:"type:varchar(32);not null;index" json:"resourceType"`
	ResourceID   string    `gorm:"type:varchar(64);not null;index" json:"resourceId"`
	Type         string    `gorm:"type:varchar(64);not null;index" json:"type"`
	Subject      string    `gorm:"type:varchar(128);not null" json:"subject"`
	Data         string    `gorm:"type:text;not null" json:"data"` // 序列化后的事件数据
	Status       string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	RetryCount   int       `gorm:"type:int;default:0" json:"retryCount"`
	LastError    string    `gorm:"type:text" json:"lastError"`
	CreatedAt    time.Time `gorm:"not null;index" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`
}

// TableName 指定表名
func (EventModel) TableName() string {
	return "events"
}

// Validate 验证事件模型
func (em *EventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.ResourceID == "" {
		return errors.New("resource ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	if em.Subject == "" {
		return errors.New("event subject is required")
	}
	if len(em.Data) == 0 {
		return errors.New("event data is required")
	}
	if em.Status == "" {
		em.Status = EventStatusPending
	}
	return nil
}
