package model

import (
	"errors"
	"time"
)

// 流转触发来源枚举
const (
	TriggerSourceQuestionResponse = "question_response" // 问题应答触发
	TriggerSourceAdminOverride    = "admin_override"    // 管理员覆盖
	TriggerSourceSystem           = "system"            // 系统动作
	TriggerSourceClientAction     = "client_action"     // 客户端动作
)

// TransitionAuditModel 阶段流转审计数据模型
// 只追加,永不更新或删除;事务失败的诊断记录 ToStageID/ToStatus 为空
type TransitionAuditModel struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)"`
	JobID           string    `gorm:"type:varchar(64);not null;index"`
	FromStageID     *string   `gorm:"type:varchar(64)"` // 初次进入时为空
	ToStageID       *string   `gorm:"type:varchar(64)"`
	FromStatus      *string   `gorm:"type:varchar(32)"`
	ToStatus        *string   `gorm:"type:varchar(32)"`
	TriggerSource   string    `gorm:"type:varchar(32);not null;index"`
	ActorID         string    `gorm:"type:varchar(64);not null;index"`
	Detail          []byte    `gorm:"type:jsonb"` // 触发上下文(JSON)
	QuestionID      *string   `gorm:"type:varchar(64)"` // 关联问题,如有
	ResponseID      *string   `gorm:"type:varchar(64)"` // 关联应答,如有
	DurationSeconds int64     `gorm:"type:bigint;not null;default:0"` // 在前一阶段停留的秒数
	CreatedAt       time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (TransitionAuditModel) TableName() string {
	return "stage_transition_audits"
}

// Validate 验证流转审计模型
func (tam *TransitionAuditModel) Validate() error {
	if tam.ID == "" {
		return errors.New("audit ID is required")
	}
	if tam.JobID == "" {
		return errors.New("job ID is required")
	}
	if tam.TriggerSource == "" {
		return errors.New("trigger source is required")
	}
	if tam.ActorID == "" {
		return errors.New("actor ID is required")
	}
	return nil
}
