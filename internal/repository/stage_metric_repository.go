package repository

import (
	"time"

	"github.com/mautops/jobflow-gin/internal/model"
	"gorm.io/gorm"
)

// StageMetricRepository 阶段指标仓储接口
type StageMetricRepository interface {
	Save(metric *model.StageMetricModel) error
	FindOpenByJobID(jobID string) (*model.StageMetricModel, error)
	FindForTenantRange(tenantID string, from, to time.Time) ([]*model.StageMetricModel, error)
}

// stageMetricRepository 阶段指标仓储实现
type stageMetricRepository struct {
	db *gorm.DB
}

// NewStageMetricRepository 创建阶段指标仓储
func NewStageMetricRepository(db *gorm.DB) StageMetricRepository {
	return &stageMetricRepository{db: db}
}

// Save 保存阶段指标
func (r *stageMetricRepository) Save(metric *model.StageMetricModel) error {
	return r.db.Save(metric).Error
}

// FindOpenByJobID 查找作业当前打开的阶段指标(exited_at 为空)
func (r *stageMetricRepository) FindOpenByJobID(jobID string) (*model.StageMetricModel, error) {
	var metric model.StageMetricModel
	err := r.db.Where("job_id = ? AND exited_at IS NULL", jobID).First(&metric).Error
	if err != nil {
		return nil, err
	}
	return &metric, nil
}

// FindForTenantRange 查找租户在时间范围内进入的阶段指标
func (r *stageMetricRepository) FindForTenantRange(tenantID string, from, to time.Time) ([]*model.StageMetricModel, error) {
	var metrics []*model.StageMetricModel
	err := r.db.Model(&model.StageMetricModel{}).
		Joins("JOIN jobs ON jobs.id = stage_metrics.job_id").
		Where("jobs.tenant_id = ? AND stage_metrics.entered_at >= ? AND stage_metrics.entered_at < ?", tenantID, from, to).
		Order("stage_metrics.entered_at ASC").
		Find(&metrics).Error
	return metrics, err
}
