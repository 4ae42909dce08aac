package model

import (
	"errors"
	"time"
)

// 阶段映射的业务状态枚举
const (
	StageStatusPlanning  = "planning"  // 规划中
	StageStatusActive    = "active"    // 进行中
	StageStatusOnHold    = "on_hold"   // 暂停
	StageStatusCompleted = "completed" // 已完成
	StageStatusCancelled = "cancelled" // 已取消
)

// 阶段类型枚举
const (
	StageKindStandard  = "standard"  // 标准阶段
	StageKindMilestone = "milestone" // 里程碑阶段
	StageKindApproval  = "approval"  // 审批阶段
)

// ValidStageStatuses 合法的阶段业务状态集合
var ValidStageStatuses = map[string]bool{
	StageStatusPlanning:  true,
	StageStatusActive:    true,
	StageStatusOnHold:    true,
	StageStatusCompleted: true,
	StageStatusCancelled: true,
}

// StageModel 工作流阶段数据模型
// TenantID 为空表示全局默认工作流阶段
type StageModel struct {
	ID               string    `gorm:"primaryKey;type:varchar(64)"`
	TenantID         *string   `gorm:"type:varchar(64);index"` // 所属租户 ID,为空表示全局默认
	Name             string    `gorm:"type:varchar(255);not null"`
	Ordinal          int       `gorm:"type:int;not null"` // 序号,同一作用域内唯一
	Status           string    `gorm:"type:varchar(32);not null"` // 映射的业务状态
	Kind             string    `gorm:"type:varchar(32);not null;default:'standard'"` // 阶段类型
	MinDurationHours int       `gorm:"type:int;default:0"` // 最短预期停留时长(小时)
	MaxDurationHours int       `gorm:"type:int;default:0"` // 最长预期停留时长(小时),0 表示不限制
	ApprovalRequired bool      `gorm:"not null;default:false"` // 是否需要审批
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName 指定表名
func (StageModel) TableName() string {
	return "stages"
}

// Validate 验证阶段模型
func (sm *StageModel) Validate() error {
	if sm.ID == "" {
		return errors.New("stage ID is required")
	}
	if sm.Name == "" {
		return errors.New("stage name is required")
	}
	if sm.Ordinal <= 0 {
		return errors.New("stage ordinal must be positive")
	}
	if !ValidStageStatuses[sm.Status] {
		return errors.New("stage status must be one of planning/active/on_hold/completed/cancelled")
	}
	if sm.Kind != StageKindStandard && sm.Kind != StageKindMilestone && sm.Kind != StageKindApproval {
		return errors.New("stage kind must be one of standard/milestone/approval")
	}
	return nil
}

// IsTerminal 判断阶段是否为终态(completed 或 cancelled)
func (sm *StageModel) IsTerminal() bool {
	return sm.Status == StageStatusCompleted || sm.Status == StageStatusCancelled
}
