package repository

import (
	"time"

	"github.com/mautops/jobflow-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResponseRepository 应答仓储接口
// 每个 (作业, 问题) 至多一条当前记录,重复提交按最后写入覆盖
type ResponseRepository interface {
	Upsert(response *model.ResponseModel) error
	FindByJobAndQuestion(jobID, questionID string) (*model.ResponseModel, error)
	FindByJobID(jobID string) ([]*model.ResponseModel, error)
}

// responseRepository 应答仓储实现
type responseRepository struct {
	db *gorm.DB
}

// NewResponseRepository 创建应答仓储
func NewResponseRepository(db *gorm.DB) ResponseRepository {
	return &responseRepository{db: db}
}

// Upsert 记录应答
// 同 (job_id, question_id) 已有记录时原地覆盖,不保留旧答案
// (历史审计由流转审计记录承担,不属于应答存储的职责)
func (r *responseRepository) Upsert(response *model.ResponseModel) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_id"}, {Name: "question_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      response.Value,
			"metadata":   response.Metadata,
			"actor_id":   response.ActorID,
			"source":     response.Source,
			"updated_at": time.Now(),
		}),
	}).Create(response).Error
}

// FindByJobAndQuestion 查找作业对某问题的当前应答
func (r *responseRepository) FindByJobAndQuestion(jobID, questionID string) (*model.ResponseModel, error) {
	var response model.ResponseModel
	err := r.db.Where("job_id = ? AND question_id = ?", jobID, questionID).
		First(&response).Error
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// FindByJobID 查找作业的全部当前应答
func (r *responseRepository) FindByJobID(jobID string) ([]*model.ResponseModel, error) {
	var responses []*model.ResponseModel
	err := r.db.Where("job_id = ?", jobID).Order("updated_at DESC").Find(&responses).Error
	return responses, err
}
