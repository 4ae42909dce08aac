package model

import (
	"errors"
	"time"
)

// 问题应答类型枚举
const (
	ResponseTypeYesNo  = "yes_no" // 是/否
	ResponseTypeText   = "text"   // 自由文本
	ResponseTypeNumber = "number" // 数值
	ResponseTypeDate   = "date"   // 日期
	ResponseTypeFile   = "file"   // 文件引用
	ResponseTypeChoice = "choice" // 多选一
)

// ValidResponseTypes 合法的应答类型集合
var ValidResponseTypes = map[string]bool{
	ResponseTypeYesNo:  true,
	ResponseTypeText:   true,
	ResponseTypeNumber: true,
	ResponseTypeDate:   true,
	ResponseTypeFile:   true,
	ResponseTypeChoice: true,
}

// QuestionModel 阶段问题数据模型
// SkipCondition 为可选的跳过条件(JSON),引用作业类别或先前某问题的应答
type QuestionModel struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)"`
	StageID       string    `gorm:"type:varchar(64);not null;index"`
	Prompt        string    `gorm:"type:text;not null"` // 问题文案
	ResponseType  string    `gorm:"type:varchar(32);not null"` // 应答类型
	Ordinal       int       `gorm:"type:int;not null"` // 序号,同一阶段内唯一
	Required      bool      `gorm:"not null;default:true"` // 是否必答
	SkipCondition []byte    `gorm:"type:jsonb"` // 跳过条件(JSON)
	Options       []byte    `gorm:"type:jsonb"` // 多选一的候选项(JSON 数组)
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName 指定表名
func (QuestionModel) TableName() string {
	return "stage_questions"
}

// Validate 验证问题模型
func (qm *QuestionModel) Validate() error {
	if qm.ID == "" {
		return errors.New("question ID is required")
	}
	if qm.StageID == "" {
		return errors.New("stage ID is required")
	}
	if qm.Prompt == "" {
		return errors.New("question prompt is required")
	}
	if !ValidResponseTypes[qm.ResponseType] {
		return errors.New("question response type is invalid")
	}
	if qm.Ordinal <= 0 {
		return errors.New("question ordinal must be positive")
	}
	return nil
}
