package service

import (
	"testing"
	"time"

	"github.com/mautops/jobflow-gin/internal/database"
	"github.com/mautops/jobflow-gin/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 创建内存数据库并建表
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库跨连接不共享,限制为单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.CreateIndexes(db))
	return db
}

// seedStage 写入一个阶段
func seedStage(t *testing.T, db *gorm.DB, id string, tenantID *string, ordinal int, status string) *model.StageModel {
	t.Helper()

	stage := &model.StageModel{
		ID:        id,
		TenantID:  tenantID,
		Name:      "stage " + id,
		Ordinal:   ordinal,
		Status:    status,
		Kind:      model.StageKindStandard,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(stage).Error)
	return stage
}

// seedTransition 写入一条流转边
func seedTransition(t *testing.T, db *gorm.DB, id, from, to, trigger, condition string, automatic bool, ordinal int) *model.TransitionModel {
	t.Helper()

	transition := &model.TransitionModel{
		ID:           id,
		FromStageID:  from,
		ToStageID:    to,
		TriggerValue: trigger,
		Condition:    condition,
		Automatic:    automatic,
		Ordinal:      ordinal,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, db.Create(transition).Error)
	return transition
}

// seedQuestion 写入一个问题
func seedQuestion(t *testing.T, db *gorm.DB, id, stageID, responseType string, skipCondition []byte) *model.QuestionModel {
	t.Helper()

	question := &model.QuestionModel{
		ID:            id,
		StageID:       stageID,
		Prompt:        "question " + id,
		ResponseType:  responseType,
		Ordinal:       1,
		Required:      true,
		SkipCondition: skipCondition,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, db.Create(question).Error)
	return question
}

// seedTemplate 写入一个任务模板
func seedTemplate(t *testing.T, db *gorm.DB, id, stageID, title, assigneeRule string) *model.TaskTemplateModel {
	t.Helper()

	template := &model.TaskTemplateModel{
		ID:             id,
		StageID:        stageID,
		Title:          title,
		DueOffsetHours: 24,
		Priority:       model.TaskPriorityMedium,
		AssigneeRule:   assigneeRule,
		Active:         true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, db.Create(template).Error)
	return template
}

// seedJob 写入一个作业(未进入任何阶段)
func seedJob(t *testing.T, db *gorm.DB, id, tenantID, category string) *model.JobModel {
	t.Helper()

	job := &model.JobModel{
		ID:        id,
		TenantID:  tenantID,
		Name:      "job " + id,
		Category:  category,
		Status:    model.StageStatusPlanning,
		OwnerID:   "owner-1",
		LeadID:    "lead-1",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(job).Error)
	return job
}
