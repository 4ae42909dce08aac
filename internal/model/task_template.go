package model

import (
	"errors"
	"time"
)

// 任务优先级枚举
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

// 任务默认指派规则枚举
const (
	AssigneeRuleCreator = "creator" // 指派给触发人
	AssigneeRuleLead    = "lead"    // 指派给作业负责人,未设置时回退到触发人
	AssigneeRuleAdmin   = "admin"   // 指派给租户内最早创建的特权用户,无法解析时回退到触发人
)

// TaskTemplateModel 任务模板数据模型
// 进入所属阶段时按模板实例化 JobTask
type TaskTemplateModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)"`
	StageID        string    `gorm:"type:varchar(64);not null;index"`
	Title          string    `gorm:"type:varchar(255);not null"`
	Description    string    `gorm:"type:text"`
	Checklist      []byte    `gorm:"type:jsonb"` // 清单项(JSON 数组)
	RequireUpload  bool      `gorm:"not null;default:false"` // 完成时是否要求上传附件
	DueOffsetHours int       `gorm:"type:int;not null;default:24"` // 截止时间偏移(小时)
	Priority       string    `gorm:"type:varchar(16);not null;default:'medium'"`
	AssigneeRule   string    `gorm:"type:varchar(32);not null;default:'creator'"` // 默认指派规则
	SLAHours       int       `gorm:"type:int;not null;default:0"` // SLA 时长(小时),0 表示沿用截止偏移
	Active         bool      `gorm:"not null;default:true;index"` // 是否启用
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName 指定表名
func (TaskTemplateModel) TableName() string {
	return "task_templates"
}

// Validate 验证任务模板模型
func (tm *TaskTemplateModel) Validate() error {
	if tm.ID == "" {
		return errors.New("template ID is required")
	}
	if tm.StageID == "" {
		return errors.New("stage ID is required")
	}
	if tm.Title == "" {
		return errors.New("template title is required")
	}
	if tm.DueOffsetHours <= 0 {
		return errors.New("template due offset must be positive")
	}
	switch tm.AssigneeRule {
	case AssigneeRuleCreator, AssigneeRuleLead, AssigneeRuleAdmin:
	default:
		return errors.New("template assignee rule must be one of creator/lead/admin")
	}
	return nil
}

// EffectiveSLAHours 返回生效的 SLA 时长
// 未显式配置 SLA 时沿用截止时间偏移
func (tm *TaskTemplateModel) EffectiveSLAHours() int {
	if tm.SLAHours > 0 {
		return tm.SLAHours
	}
	return tm.DueOffsetHours
}
