package repository

import (
	"github.com/mautops/jobflow-gin/internal/model"
	"gorm.io/gorm"
)

// TaskTemplateRepository 任务模板仓储接口
type TaskTemplateRepository interface {
	Save(template *model.TaskTemplateModel) error
	FindByID(id string) (*model.TaskTemplateModel, error)
	FindByStageID(stageID string) ([]*model.TaskTemplateModel, error)
	FindActiveByStageID(stageID string) ([]*model.TaskTemplateModel, error)
}

// taskTemplateRepository 任务模板仓储实现
type taskTemplateRepository struct {
	db *gorm.DB
}

// NewTaskTemplateRepository 创建任务模板仓储
func NewTaskTemplateRepository(db *gorm.DB) TaskTemplateRepository {
	return &taskTemplateRepository{db: db}
}

// Save 保存任务模板
func (r *taskTemplateRepository) Save(template *model.TaskTemplateModel) error {
	return r.db.Save(template).Error
}

// FindByID 根据 ID 查找任务模板
func (r *taskTemplateRepository) FindByID(id string) (*model.TaskTemplateModel, error) {
	var template model.TaskTemplateModel
	if err := r.db.Where("id = ?", id).First(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

// FindByStageID 查找阶段下的全部任务模板
func (r *taskTemplateRepository) FindByStageID(stageID string) ([]*model.TaskTemplateModel, error) {
	var templates []*model.TaskTemplateModel
	err := r.db.Where("stage_id = ?", stageID).Order("created_at ASC").Find(&templates).Error
	return templates, err
}

// FindActiveByStageID 查找阶段下启用的任务模板,进入阶段时按此实例化
func (r *taskTemplateRepository) FindActiveByStageID(stageID string) ([]*model.TaskTemplateModel, error) {
	var templates []*model.TaskTemplateModel
	err := r.db.Where("stage_id = ? AND active = ?", stageID, true).
		Order("created_at ASC").
		Find(&templates).Error
	return templates, err
}
