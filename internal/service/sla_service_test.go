package service

import (
	"testing"
	"time"

	"github.com/mautops/jobflow-gin/internal/model"
	"github.com/mautops/jobflow-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedJobTask 写入一个作业任务
func seedJobTask(t *testing.T, db *gorm.DB, id, jobID string, createdAt, dueAt time.Time, slaHours int, completedAt *time.Time) *model.JobTaskModel {
	t.Helper()

	task := &model.JobTaskModel{
		ID:          id,
		JobID:       jobID,
		TemplateID:  "ttp-1",
		StageID:     "stg-1",
		Title:       "task " + id,
		Status:      model.JobTaskStatusOpen,
		AssigneeID:  "user-1",
		Priority:    model.TaskPriorityMedium,
		DueAt:       dueAt,
		SLAHours:    slaHours,
		CompletedAt: completedAt,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if completedAt != nil {
		task.Status = model.JobTaskStatusCompleted
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

// newSLAFixture 构造固定时钟的 SLA 巡检服务
func newSLAFixture(t *testing.T) (*gorm.DB, SLAService, time.Time) {
	t.Helper()

	db := setupTestDB(t)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	svc := &slaService{
		taskRepo: repository.NewJobTaskRepository(db),
		now:      func() time.Time { return now },
	}
	return db, svc, now
}

// TestCheckViolations_Severity 测试严重级别分桶
func TestCheckViolations_Severity(t *testing.T) {
	db, svc, now := newSLAFixture(t)
	seedJob(t, db, "job-1", "tnt-1", "construction")

	// 模板未声明 SLA,以截止时间为准:超时 10 小时
	seedJobTask(t, db, "tsk-medium", "job-1", now.Add(-20*time.Hour), now.Add(-10*time.Hour), 0, nil)
	// 超时 2 小时
	seedJobTask(t, db, "tsk-low", "job-1", now.Add(-20*time.Hour), now.Add(-2*time.Hour), 0, nil)
	// 超时 30 小时
	seedJobTask(t, db, "tsk-high", "job-1", now.Add(-40*time.Hour), now.Add(-30*time.Hour), 0, nil)
	// 超时 100 小时
	seedJobTask(t, db, "tsk-critical", "job-1", now.Add(-120*time.Hour), now.Add(-100*time.Hour), 0, nil)

	violations, err := svc.CheckViolations("tnt-1")
	require.NoError(t, err)
	require.Len(t, violations, 4)

	severities := make(map[string]string)
	for _, violation := range violations {
		severities[violation.TaskID] = violation.Severity
	}
	assert.Equal(t, SLASeverityLow, severities["tsk-low"])
	assert.Equal(t, SLASeverityMedium, severities["tsk-medium"])
	assert.Equal(t, SLASeverityHigh, severities["tsk-high"])
	assert.Equal(t, SLASeverityCritical, severities["tsk-critical"])
}

// TestCheckViolations_SLADeadline 测试显式 SLA 优先于截止时间
func TestCheckViolations_SLADeadline(t *testing.T) {
	db, svc, now := newSLAFixture(t)
	seedJob(t, db, "job-1", "tnt-1", "construction")

	// 创建于 50 小时前,SLA 48 小时:按 SLA 超时 2 小时,而非按截止时间的 1 小时
	seedJobTask(t, db, "tsk-1", "job-1", now.Add(-50*time.Hour), now.Add(-time.Hour), 48, nil)

	violations, err := svc.CheckViolations("tnt-1")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.InDelta(t, 2.0, violations[0].HoursOverdue, 0.001)
	assert.Equal(t, 48, violations[0].SLAHours)
}

// TestCheckViolations_Grace 测试已过截止但仍在 SLA 内的任务不计违约
func TestCheckViolations_Grace(t *testing.T) {
	db, svc, now := newSLAFixture(t)
	seedJob(t, db, "job-1", "tnt-1", "construction")

	// 截止已过 1 小时,但 SLA 截止在 2 小时后
	seedJobTask(t, db, "tsk-1", "job-1", now.Add(-6*time.Hour), now.Add(-time.Hour), 8, nil)

	violations, err := svc.CheckViolations("tnt-1")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

// TestCheckViolations_Scope 测试完成任务与租户隔离
func TestCheckViolations_Scope(t *testing.T) {
	db, svc, now := newSLAFixture(t)
	seedJob(t, db, "job-1", "tnt-1", "construction")
	seedJob(t, db, "job-2", "tnt-2", "construction")

	completedAt := now.Add(-5 * time.Hour)
	seedJobTask(t, db, "tsk-done", "job-1", now.Add(-20*time.Hour), now.Add(-10*time.Hour), 0, &completedAt)
	seedJobTask(t, db, "tsk-other", "job-2", now.Add(-20*time.Hour), now.Add(-10*time.Hour), 0, nil)

	violations, err := svc.CheckViolations("tnt-1")
	require.NoError(t, err)
	assert.Empty(t, violations)

	// 不限定租户时跨租户巡检
	violations, err = svc.CheckViolations("")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "tsk-other", violations[0].TaskID)
}
