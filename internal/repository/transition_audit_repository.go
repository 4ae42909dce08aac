package repository

import (
	"github.com/mautops/jobflow-gin/internal/model"
	"gorm.io/gorm"
)

// TransitionAuditRepository 流转审计仓储接口
// 只追加:接口上不提供更新或删除
type TransitionAuditRepository interface {
	Append(record *model.TransitionAuditModel) error
	FindByJobID(jobID string) ([]*model.TransitionAuditModel, error)
}

// transitionAuditRepository 流转审计仓储实现
type transitionAuditRepository struct {
	db *gorm.DB
}

// NewTransitionAuditRepository 创建流转审计仓储
func NewTransitionAuditRepository(db *gorm.DB) TransitionAuditRepository {
	return &transitionAuditRepository{db: db}
}

// Append 追加流转审计记录
func (r *transitionAuditRepository) Append(record *model.TransitionAuditModel) error {
	return r.db.Create(record).Error
}

// FindByJobID 查找作业的流转历史,按时间升序
func (r *transitionAuditRepository) FindByJobID(jobID string) ([]*model.TransitionAuditModel, error) {
	var records []*model.TransitionAuditModel
	err := r.db.Where("job_id = ?", jobID).Order("created_at ASC").Find(&records).Error
	return records, err
}
