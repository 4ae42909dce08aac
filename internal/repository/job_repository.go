package repository

import (
	"github.com/mautops/jobflow-gin/internal/model"
	"gorm.io/gorm"
)

// JobRepository 作业仓储接口
// 推进字段 (current_stage_id/stage_entered_at/status) 的写入
// 发生在 ProgressionService 的事务内,此处只承担常规读写
type JobRepository interface {
	Save(job *model.JobModel) error
	FindByID(id string) (*model.JobModel, error)
	FindByTenant(tenantID string) ([]*model.JobModel, error)
}

// jobRepository 作业仓储实现
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository 创建作业仓储
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

// Save 保存作业
func (r *jobRepository) Save(job *model.JobModel) error {
	return r.db.Save(job).Error
}

// FindByID 根据 ID 查找作业
func (r *jobRepository) FindByID(id string) (*model.JobModel, error) {
	var job model.JobModel
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByTenant 查找租户的全部作业
func (r *jobRepository) FindByTenant(tenantID string) ([]*model.JobModel, error) {
	var jobs []*model.JobModel
	err := r.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}
