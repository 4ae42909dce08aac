package model

import (
	"errors"
	"time"
)

// 作业任务状态枚举
const (
	JobTaskStatusOpen       = "open"        // 待处理
	JobTaskStatusInProgress = "in_progress" // 处理中
	JobTaskStatusCompleted  = "completed"   // 已完成
	JobTaskStatusSkipped    = "skipped"     // 已跳过
)

// JobTaskModel 作业任务数据模型
// 进入阶段时由任务模板实例化,只随作业流转累积,不做物理删除
type JobTaskModel struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)"`
	JobID       string     `gorm:"type:varchar(64);not null;index"`
	TemplateID  string     `gorm:"type:varchar(64);not null;index"`
	StageID     string     `gorm:"type:varchar(64);not null;index"`
	Title       string     `gorm:"type:varchar(255);not null"`
	Status      string     `gorm:"type:varchar(32);not null;default:'open';index"`
	AssigneeID  string     `gorm:"type:varchar(64);index"` // 指派人 ID
	Priority    string     `gorm:"type:varchar(16);not null;default:'medium'"`
	Checklist   []byte     `gorm:"type:jsonb"` // 模板清单的快照
	DueAt       time.Time  `gorm:"not null;index"` // 截止时间
	SLAHours    int        `gorm:"type:int;not null;default:0"` // 实例化时模板声明的 SLA
	CompletedAt *time.Time `gorm:"index"`
	CompletedBy string     `gorm:"type:varchar(64)"`
	Artifacts   []byte     `gorm:"type:jsonb"` // 完成产物(附件引用等)
	CreatedAt   time.Time  `gorm:"not null;index"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName 指定表名
func (JobTaskModel) TableName() string {
	return "job_tasks"
}

// Validate 验证作业任务模型
func (jtm *JobTaskModel) Validate() error {
	if jtm.ID == "" {
		return errors.New("job task ID is required")
	}
	if jtm.JobID == "" {
		return errors.New("job ID is required")
	}
	if jtm.TemplateID == "" {
		return errors.New("template ID is required")
	}
	if jtm.Title == "" {
		return errors.New("job task title is required")
	}
	return nil
}

// IsOverdue 判断任务在 now 时刻是否已逾期
func (jtm *JobTaskModel) IsOverdue(now time.Time) bool {
	return jtm.CompletedAt == nil && now.After(jtm.DueAt)
}
