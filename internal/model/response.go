package model

import (
	"errors"
	"time"
)

// 应答来源渠道枚举
const (
	ResponseSourceWeb    = "web"    // Web 端
	ResponseSourceMobile = "mobile" // 移动端
	ResponseSourceAPI    = "api"    // 外部系统调用
	ResponseSourceSystem = "system" // 系统内部
)

// ResponseModel 问题应答数据模型
// 每个 (job_id, question_id) 至多一条当前记录,重复提交原地覆盖
type ResponseModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	JobID      string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_responses_job_question"`
	QuestionID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_responses_job_question"`
	Value      string    `gorm:"type:text;not null"` // 原始应答值
	Metadata   []byte    `gorm:"type:jsonb"` // 结构化元数据
	ActorID    string    `gorm:"type:varchar(64);not null;index"` // 应答人 ID
	Source     string    `gorm:"type:varchar(32);not null;default:'api'"` // 来源渠道
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (ResponseModel) TableName() string {
	return "question_responses"
}

// Validate 验证应答模型
func (rm *ResponseModel) Validate() error {
	if rm.ID == "" {
		return errors.New("response ID is required")
	}
	if rm.JobID == "" {
		return errors.New("job ID is required")
	}
	if rm.QuestionID == "" {
		return errors.New("question ID is required")
	}
	if rm.ActorID == "" {
		return errors.New("actor ID is required")
	}
	return nil
}
