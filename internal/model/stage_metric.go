package model

import (
	"errors"
	"time"
)

// StageMetricModel 阶段停留指标数据模型
// 每次 (作业, 阶段访问) 一条;作业仍在该阶段时 ExitedAt 为空
type StageMetricModel struct {
	ID              string     `gorm:"primaryKey;type:varchar(64)"`
	JobID           string     `gorm:"type:varchar(64);not null;index"`
	StageID         string     `gorm:"type:varchar(64);not null;index"`
	EnteredAt       time.Time  `gorm:"not null;index"`
	ExitedAt        *time.Time `gorm:"index"`
	DurationSeconds *int64     `gorm:"type:bigint"` // 关闭时计算
	CompletedTasks  int        `gorm:"type:int;not null;default:0"` // 该阶段内完成的任务数
	OverdueTasks    int        `gorm:"type:int;not null;default:0"` // 关闭时仍逾期未完成的任务数
	Converted       bool       `gorm:"not null;default:false"` // 是否成功流出(用于阶段转化率分析)
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
}

// TableName 指定表名
func (StageMetricModel) TableName() string {
	return "stage_metrics"
}

// Validate 验证阶段指标模型
func (smm *StageMetricModel) Validate() error {
	if smm.ID == "" {
		return errors.New("metric ID is required")
	}
	if smm.JobID == "" {
		return errors.New("job ID is required")
	}
	if smm.StageID == "" {
		return errors.New("stage ID is required")
	}
	if smm.EnteredAt.IsZero() {
		return errors.New("entered at is required")
	}
	return nil
}
