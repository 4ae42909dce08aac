package repository

import (
	"time"

	"github.com/mautops/jobflow-gin/internal/model"
	"gorm.io/gorm"
)

// JobTaskRepository 作业任务仓储接口
type JobTaskRepository interface {
	Save(task *model.JobTaskModel) error
	FindByID(id string) (*model.JobTaskModel, error)
	FindByJobID(jobID string) ([]*model.JobTaskModel, error)
	FindOverdue(tenantID string, now time.Time) ([]*model.JobTaskModel, error)
	CountByStageVisit(jobID, stageID string, since time.Time, now time.Time) (completed int64, overdue int64, err error)
}

// jobTaskRepository 作业任务仓储实现
type jobTaskRepository struct {
	db *gorm.DB
}

// NewJobTaskRepository 创建作业任务仓储
func NewJobTaskRepository(db *gorm.DB) JobTaskRepository {
	return &jobTaskRepository{db: db}
}

// Save 保存作业任务
func (r *jobTaskRepository) Save(task *model.JobTaskModel) error {
	return r.db.Save(task).Error
}

// FindByID 根据 ID 查找作业任务
func (r *jobTaskRepository) FindByID(id string) (*model.JobTaskModel, error) {
	var task model.JobTaskModel
	if err := r.db.Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByJobID 查找作业的全部任务
func (r *jobTaskRepository) FindByJobID(jobID string) ([]*model.JobTaskModel, error) {
	var tasks []*model.JobTaskModel
	err := r.db.Where("job_id = ?", jobID).Order("created_at ASC").Find(&tasks).Error
	return tasks, err
}

// FindOverdue 查找逾期未完成的作业任务
// tenantID 为空时跨租户返回
func (r *jobTaskRepository) FindOverdue(tenantID string, now time.Time) ([]*model.JobTaskModel, error) {
	var tasks []*model.JobTaskModel
	query := r.db.Model(&model.JobTaskModel{}).
		Where("job_tasks.completed_at IS NULL AND job_tasks.due_at < ?", now)
	if tenantID != "" {
		query = query.Joins("JOIN jobs ON jobs.id = job_tasks.job_id").
			Where("jobs.tenant_id = ?", tenantID)
	}
	err := query.Order("job_tasks.due_at ASC").Find(&tasks).Error
	return tasks, err
}

// CountByStageVisit 统计一次阶段停留期间的任务完成与逾期数
// since 为进入阶段的时刻,只统计该次停留实例化的任务
func (r *jobTaskRepository) CountByStageVisit(jobID, stageID string, since time.Time, now time.Time) (int64, int64, error) {
	var completed, overdue int64
	err := r.db.Model(&model.JobTaskModel{}).
		Where("job_id = ? AND stage_id = ? AND created_at >= ? AND completed_at IS NOT NULL", jobID, stageID, since).
		Count(&completed).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.Model(&model.JobTaskModel{}).
		Where("job_id = ? AND stage_id = ? AND created_at >= ? AND completed_at IS NULL AND due_at < ?", jobID, stageID, since, now).
		Count(&overdue).Error
	return completed, overdue, err
}
