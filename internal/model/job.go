package model

import (
	"errors"
	"time"
)

// JobModel 作业数据模型
// 本引擎只拥有 CurrentStageID/StageEnteredAt/Status 三个推进字段,
// 其余属性归外部协作方所有
type JobModel struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)"`
	TenantID       string     `gorm:"type:varchar(64);not null;index"`
	Name           string     `gorm:"type:varchar(255);not null"`
	Category       string     `gorm:"type:varchar(64);index"` // 作业类别,跳过条件可引用
	Status         string     `gorm:"type:varchar(32);not null;index"` // 由当前阶段派生的业务状态
	CurrentStageID *string    `gorm:"type:varchar(64);index"` // 当前阶段
	StageEnteredAt *time.Time `gorm:""` // 进入当前阶段的时刻
	OwnerID        string     `gorm:"type:varchar(64);not null;index"` // 作业归属人(外部身份,不透明)
	LeadID         string     `gorm:"type:varchar(64)"` // 作业负责人,任务指派规则 lead 引用
	CreatedAt      time.Time  `gorm:"not null;index"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName 指定表名
func (JobModel) TableName() string {
	return "jobs"
}

// Validate 验证作业模型
func (jm *JobModel) Validate() error {
	if jm.ID == "" {
		return errors.New("job ID is required")
	}
	if jm.TenantID == "" {
		return errors.New("tenant ID is required")
	}
	if jm.Name == "" {
		return errors.New("job name is required")
	}
	if jm.OwnerID == "" {
		return errors.New("owner ID is required")
	}
	return nil
}
