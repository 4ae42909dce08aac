package model

import (
	"errors"
	"time"
)

// TransitionModel 阶段流转边数据模型
// 由触发文本(大小写和首尾空白不敏感)或结构化条件表达式触发
type TransitionModel struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)"`
	FromStageID     string    `gorm:"type:varchar(64);not null;index"`
	ToStageID       string    `gorm:"type:varchar(64);not null;index"`
	TriggerValue    string    `gorm:"type:varchar(255)"` // 触发文本
	Condition       string    `gorm:"type:varchar(255)"` // 条件表达式,如 ">=90"
	Automatic       bool      `gorm:"not null;default:true"` // 自动流转标志
	RequireOverride bool      `gorm:"not null;default:false"` // 是否仅允许管理员覆盖触发
	Ordinal         int       `gorm:"type:int;not null;default:0"` // 声明顺序,用于多匹配裁决
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName 指定表名
func (TransitionModel) TableName() string {
	return "stage_transitions"
}

// Validate 验证流转模型
// 自环在此处拒绝,自动边可达环在定义期由图检查拒绝
func (tm *TransitionModel) Validate() error {
	if tm.ID == "" {
		return errors.New("transition ID is required")
	}
	if tm.FromStageID == "" {
		return errors.New("from stage ID is required")
	}
	if tm.ToStageID == "" {
		return errors.New("to stage ID is required")
	}
	if tm.FromStageID == tm.ToStageID {
		return errors.New("transition must not be a self-loop")
	}
	if tm.TriggerValue == "" && tm.Condition == "" {
		return errors.New("transition requires a trigger value or a condition expression")
	}
	return nil
}
