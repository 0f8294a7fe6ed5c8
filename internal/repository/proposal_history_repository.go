package repository

import (
	"github.com/mautops/budget-gin/internal/model"
	"gorm.io/gorm"
)

// ProposalHistoryRepository 禀议书历史仓储接口
type ProposalHistoryRepository interface {
	Save(history *model.ProposalHistoryModel) error
	FindByProposalID(proposalID uint) ([]*model.ProposalHistoryModel, error)
}

// proposalHistoryRepository 禀议书历史仓储实现
type proposalHistoryRepository struct {
	db *gorm.DB
}

// NewProposalHistoryRepository 创建禀议书历史仓储
func NewProposalHistoryRepository(db *gorm.DB) ProposalHistoryRepository {
	return &proposalHistoryRepository{db: db}
}

// Save 追加历史记录
func (r *proposalHistoryRepository) Save(history *model.ProposalHistoryModel) error {
	if err := history.Validate(); err != nil {
		return err
	}
	return r.db.Create(history).Error
}

// FindByProposalID 按时间顺序查找禀议书历史
func (r *proposalHistoryRepository) FindByProposalID(proposalID uint) ([]*model.ProposalHistoryModel, error) {
	var histories []*model.ProposalHistoryModel
	err := r.db.Where("proposal_id = ?", proposalID).Order("changed_at ASC, id ASC").Find(&histories).Error
	return histories, err
}
