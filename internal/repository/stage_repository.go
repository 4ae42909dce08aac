package repository

import (
	"github.com/mautops/jobflow-gin/internal/model"
	"gorm.io/gorm"
)

// StageRepository 阶段图仓储接口
// 覆盖阶段与流转边;租户定制与全局默认的解析遵循覆盖查找,不做合并
type StageRepository interface {
	SaveStage(stage *model.StageModel) error
	FindStageByID(id string) (*model.StageModel, error)
	FindStagesForTenant(tenantID string) ([]*model.StageModel, error)
	FindInitialStage(tenantID string) (*model.StageModel, error)
	SaveTransition(transition *model.TransitionModel) error
	DeleteTransition(id string) error
	FindTransitionsFrom(stageID string) ([]*model.TransitionModel, error)
	FindTransitionsAmong(stageIDs []string) ([]*model.TransitionModel, error)
}

// stageRepository 阶段图仓储实现
type stageRepository struct {
	db *gorm.DB
}

// NewStageRepository 创建阶段图仓储
func NewStageRepository(db *gorm.DB) StageRepository {
	return &stageRepository{db: db}
}

// SaveStage 保存阶段
func (r *stageRepository) SaveStage(stage *model.StageModel) error {
	return r.db.Save(stage).Error
}

// FindStageByID 根据 ID 查找阶段
func (r *stageRepository) FindStageByID(id string) (*model.StageModel, error) {
	var stage model.StageModel
	if err := r.db.Where("id = ?", id).First(&stage).Error; err != nil {
		return nil, err
	}
	return &stage, nil
}

// FindStagesForTenant 解析租户生效的阶段集
// 租户有定制阶段时返回定制集,否则回退到全局默认(tenant_id 为空)
func (r *stageRepository) FindStagesForTenant(tenantID string) ([]*model.StageModel, error) {
	var stages []*model.StageModel
	err := r.db.Where("tenant_id = ?", tenantID).Order("ordinal ASC").Find(&stages).Error
	if err != nil {
		return nil, err
	}
	if len(stages) > 0 {
		return stages, nil
	}
	err = r.db.Where("tenant_id IS NULL").Order("ordinal ASC").Find(&stages).Error
	return stages, err
}

// FindInitialStage 返回租户生效阶段集中序号为 1 的初始阶段
func (r *stageRepository) FindInitialStage(tenantID string) (*model.StageModel, error) {
	stages, err := r.FindStagesForTenant(tenantID)
	if err != nil {
		return nil, err
	}
	for _, stage := range stages {
		if stage.Ordinal == 1 {
			return stage, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// SaveTransition 保存流转边
func (r *stageRepository) SaveTransition(transition *model.TransitionModel) error {
	return r.db.Save(transition).Error
}

// DeleteTransition 删除流转边
func (r *stageRepository) DeleteTransition(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.TransitionModel{}).Error
}

// FindTransitionsFrom 查找以 stageID 为起点的流转边,按声明序号排序
func (r *stageRepository) FindTransitionsFrom(stageID string) ([]*model.TransitionModel, error) {
	var transitions []*model.TransitionModel
	err := r.db.Where("from_stage_id = ?", stageID).
		Order("ordinal ASC, created_at ASC").
		Find(&transitions).Error
	return transitions, err
}

// FindTransitionsAmong 查找起点落在给定阶段集内的全部流转边
// 供定义期的环检查使用
func (r *stageRepository) FindTransitionsAmong(stageIDs []string) ([]*model.TransitionModel, error) {
	if len(stageIDs) == 0 {
		return nil, nil
	}
	var transitions []*model.TransitionModel
	err := r.db.Where("from_stage_id IN ?", stageIDs).
		Order("ordinal ASC").
		Find(&transitions).Error
	return transitions, err
}
