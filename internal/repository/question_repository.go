package repository

import (
	"github.com/mautops/jobflow-gin/internal/model"
	"gorm.io/gorm"
)

// QuestionRepository 问题仓储接口
type QuestionRepository interface {
	Save(question *model.QuestionModel) error
	FindByID(id string) (*model.QuestionModel, error)
	FindByStageID(stageID string) ([]*model.QuestionModel, error)
}

// questionRepository 问题仓储实现
type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository 创建问题仓储
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

// Save 保存问题
func (r *questionRepository) Save(question *model.QuestionModel) error {
	return r.db.Save(question).Error
}

// FindByID 根据 ID 查找问题
func (r *questionRepository) FindByID(id string) (*model.QuestionModel, error) {
	var question model.QuestionModel
	if err := r.db.Where("id = ?", id).First(&question).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

// FindByStageID 查找阶段下的全部问题,按序号排序
func (r *questionRepository) FindByStageID(stageID string) ([]*model.QuestionModel, error) {
	var questions []*model.QuestionModel
	err := r.db.Where("stage_id = ?", stageID).Order("ordinal ASC").Find(&questions).Error
	return questions, err
}
