package model

import (
	"errors"
	"time"
)

// 历史记录变更类型
const (
	ChangeTypeCreate       = "create"
	ChangeTypeUpdate       = "update"
	ChangeTypeStatusChange = "status_change"
	ChangeTypeDelete       = "delete"
)

// ProposalHistoryModel 禀议书变更历史数据模型
// 只追加,正常流程中不修改也不删除
type ProposalHistoryModel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProposalID  uint      `gorm:"not null;index" json:"proposalId"`
	ChangedBy   string    `gorm:"type:varchar(64);not null" json:"changedBy"`
	ChangeType  string    `gorm:"type:varchar(32);not null" json:"changeType"`
	FieldName   string    `gorm:"type:varchar(64)" json:"fieldName"`
	OldValue    *string   `gorm:"type:text" json:"oldValue"`
	NewValue    *string   `gorm:"type:text" json:"newValue"`
	Description string    `gorm:"type:text" json:"description"`
	ChangedAt   time.Time `gorm:"not null;index" json:"changedAt"`
}

// TableName 指定表名
func (ProposalHistoryModel) TableName() string {
	return "proposal_histories"
}

// Validate 验证禀议书历史模型
func (h *ProposalHistoryModel) Validate() error {
	if h.ProposalID == 0 {
		return errors.New("proposal ID is required")
	}
	if h.ChangeType == "" {
		return errors.New("change type is required")
	}
	if h.ChangedBy == "" {
		return errors.New("changed by is required")
	}
	return nil
}
