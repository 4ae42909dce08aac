package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mautops/jobflow-gin/internal/auth"
	"github.com/mautops/jobflow-gin/internal/engine"
	"github.com/mautops/jobflow-gin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newProgressionFixture 搭建两阶段工作流:
// S1 --Yes--> S2,S1 上一个是/否问题,S2 上一个任务模板
func newProgressionFixture(t *testing.T) (*gorm.DB, ProgressionService, *model.JobModel) {
	db := setupTestDB(t)

	seedStage(t, db, "stg-1", nil, 1, model.StageStatusPlanning)
	seedStage(t, db, "stg-2", nil, 2, model.StageStatusActive)
	seedTransition(t, db, "trn-1", "stg-1", "stg-2", "Yes", "", true, 0)
	seedQuestion(t, db, "qst-1", "stg-1", model.ResponseTypeYesNo, nil)
	seedTemplate(t, db, "ttp-1", "stg-2", "kickoff checklist", model.AssigneeRuleCreator)

	svc := NewProgressionService(db, auth.AllowAllChecker{}, nil)
	job := seedJob(t, db, "job-1", "tnt-1", "construction")

	_, err := svc.EnterInitialStage(context.Background(), job.ID, "owner-1")
	require.NoError(t, err)

	return db, svc, job
}

// TestSubmitResponse_Transition 测试应答命中触发文本后的完整推进
func TestSubmitResponse_Transition(t *testing.T) {
	db, svc, job := newProgressionFixture(t)

	result, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID:      job.ID,
		QuestionID: "qst-1",
		Value:      "  YES  ", // 大小写与首尾空白不敏感
		ActorID:    "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeTransitioned, result.Outcome)
	assert.Equal(t, "stg-1", result.FromStageID)
	assert.Equal(t, "stg-2", result.ToStageID)
	assert.Equal(t, model.StageStatusActive, result.ToStatus)
	assert.Equal(t, 1, result.TasksCreated)

	// 作业指针与派生状态已移动
	var reloaded model.JobModel
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	require.NotNil(t, reloaded.CurrentStageID)
	assert.Equal(t, "stg-2", *reloaded.CurrentStageID)
	assert.Equal(t, model.StageStatusActive, reloaded.Status)
	assert.NotNil(t, reloaded.StageEnteredAt)

	// 审计: 初始进入 + 本次流转
	var audits []*model.TransitionAuditModel
	require.NoError(t, db.Order("created_at ASC").Find(&audits, "job_id = ?", job.ID).Error)
	require.Len(t, audits, 2)
	assert.Equal(t, model.TriggerSourceSystem, audits[0].TriggerSource)
	assert.Equal(t, model.TriggerSourceQuestionResponse, audits[1].TriggerSource)
	require.NotNil(t, audits[1].FromStageID)
	assert.Equal(t, "stg-1", *audits[1].FromStageID)
	require.NotNil(t, audits[1].QuestionID)
	assert.Equal(t, "qst-1", *audits[1].QuestionID)

	// 指标: stg-1 已关闭并标记转化,stg-2 打开
	var closed model.StageMetricModel
	require.NoError(t, db.First(&closed, "job_id = ? AND stage_id = ?", job.ID, "stg-1").Error)
	assert.NotNil(t, closed.ExitedAt)
	assert.NotNil(t, closed.DurationSeconds)
	assert.True(t, closed.Converted)

	var open model.StageMetricModel
	require.NoError(t, db.First(&open, "job_id = ? AND stage_id = ?", job.ID, "stg-2").Error)
	assert.Nil(t, open.ExitedAt)

	// stg-2 的模板已实例化
	var tasks []*model.JobTaskModel
	require.NoError(t, db.Find(&tasks, "job_id = ? AND stage_id = ?", job.ID, "stg-2").Error)
	require.Len(t, tasks, 1)
	assert.Equal(t, "kickoff checklist", tasks[0].Title)
	assert.Equal(t, "user-1", tasks[0].AssigneeID) // creator 规则
	assert.Equal(t, model.JobTaskStatusOpen, tasks[0].Status)
}

// TestSubmitResponse_NoTransition 测试无命中时应答已记录、状态不变
func TestSubmitResponse_NoTransition(t *testing.T) {
	db, svc, job := newProgressionFixture(t)

	var auditsBefore int64
	db.Model(&model.TransitionAuditModel{}).Where("job_id = ?", job.ID).Count(&auditsBefore)

	result, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID:      job.ID,
		QuestionID: "qst-1",
		Value:      "No",
		ActorID:    "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoTransition, result.Outcome)
	assert.NotEmpty(t, result.ResponseID)

	// 应答已持久化
	var response model.ResponseModel
	require.NoError(t, db.First(&response, "job_id = ? AND question_id = ?", job.ID, "qst-1").Error)
	assert.Equal(t, "No", response.Value)

	// 阶段与审计数均不变
	var reloaded model.JobModel
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, "stg-1", *reloaded.CurrentStageID)

	var auditsAfter int64
	db.Model(&model.TransitionAuditModel{}).Where("job_id = ?", job.ID).Count(&auditsAfter)
	assert.Equal(t, auditsBefore, auditsAfter)
}

// TestSubmitResponse_Threshold 测试数值阈值条件
func TestSubmitResponse_Threshold(t *testing.T) {
	db := setupTestDB(t)
	seedStage(t, db, "stg-1", nil, 1, model.StageStatusPlanning)
	seedStage(t, db, "stg-2", nil, 2, model.StageStatusActive)
	seedTransition(t, db, "trn-1", "stg-1", "stg-2", "", ">=90", true, 0)
	seedQuestion(t, db, "qst-1", "stg-1", model.ResponseTypeNumber, nil)

	svc := NewProgressionService(db, auth.AllowAllChecker{}, nil)
	job := seedJob(t, db, "job-1", "tnt-1", "")
	_, err := svc.EnterInitialStage(context.Background(), job.ID, "owner-1")
	require.NoError(t, err)

	// 85 不达阈值
	result, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "85", ActorID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoTransition, result.Outcome)

	// 92 达阈值
	result, err = svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "92", ActorID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeTransitioned, result.Outcome)
	assert.Equal(t, "stg-2", result.ToStageID)
}

// TestSubmitResponse_ValidationRejected 测试格式校验在任何状态变更之前拒绝
func TestSubmitResponse_ValidationRejected(t *testing.T) {
	db, svc, job := newProgressionFixture(t)

	_, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID:      job.ID,
		QuestionID: "qst-1",
		Value:      "maybe",
		ActorID:    "user-1",
	})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)

	// 应答未被记录
	var count int64
	db.Model(&model.ResponseModel{}).Where("job_id = ?", job.ID).Count(&count)
	assert.Zero(t, count)
}

// TestSubmitResponse_Resubmission 测试重复提交覆盖写同一行
func TestSubmitResponse_Resubmission(t *testing.T) {
	db, svc, job := newProgressionFixture(t)

	first, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "Yes", ActorID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeTransitioned, first.Outcome)

	// 作业已在 stg-2,无出边命中:重复提交按无流转上报
	second, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "Yes", ActorID: "user-2",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoTransition, second.Outcome)

	// 同 (作业, 问题) 只有一行当前应答,应答人已覆盖
	var responses []*model.ResponseModel
	require.NoError(t, db.Find(&responses, "job_id = ? AND question_id = ?", job.ID, "qst-1").Error)
	require.Len(t, responses, 1)
	assert.Equal(t, "user-2", responses[0].ActorID)
}

// TestSubmitResponse_SkipCondition 测试跳过条件命中时不做流转求值
func TestSubmitResponse_SkipCondition(t *testing.T) {
	db := setupTestDB(t)
	seedStage(t, db, "stg-1", nil, 1, model.StageStatusPlanning)
	seedStage(t, db, "stg-2", nil, 2, model.StageStatusActive)
	seedTransition(t, db, "trn-1", "stg-1", "stg-2", "Yes", "", true, 0)
	seedQuestion(t, db, "qst-1", "stg-1", model.ResponseTypeYesNo,
		[]byte(`{"kind":"job_category","equals":"maintenance"}`))

	svc := NewProgressionService(db, auth.AllowAllChecker{}, nil)
	job := seedJob(t, db, "job-1", "tnt-1", "maintenance")
	_, err := svc.EnterInitialStage(context.Background(), job.ID, "owner-1")
	require.NoError(t, err)

	result, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "Yes", ActorID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeSkipped, result.Outcome)

	// 应答已记录,作业停留在原阶段
	var response model.ResponseModel
	require.NoError(t, db.First(&response, "job_id = ?", job.ID).Error)

	var reloaded model.JobModel
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, "stg-1", *reloaded.CurrentStageID)
}

// TestOverrideStage 测试管理员覆盖可达任意阶段并审计原因
func TestOverrideStage(t *testing.T) {
	db, svc, job := newProgressionFixture(t)
	// 图上不相邻的阶段
	seedStage(t, db, "stg-9", nil, 9, model.StageStatusCompleted)

	result, err := svc.OverrideStage(context.Background(), &OverrideStageRequest{
		JobID:         job.ID,
		TargetStageID: "stg-9",
		ActorID:       "admin-1",
		Reason:        "client escalation",
	})
	require.NoError(t, err)
	assert.Equal(t, "stg-9", result.ToStageID)

	var reloaded model.JobModel
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, "stg-9", *reloaded.CurrentStageID)
	assert.Equal(t, model.StageStatusCompleted, reloaded.Status)

	// 审计来源为 admin_override,原因在载荷中
	var audit model.TransitionAuditModel
	require.NoError(t, db.First(&audit, "id = ?", result.AuditID).Error)
	assert.Equal(t, model.TriggerSourceAdminOverride, audit.TriggerSource)
	assert.Equal(t, "admin-1", audit.ActorID)
	assert.Contains(t, string(audit.Detail), "client escalation")
}

// TestOverrideStage_PermissionDenied 测试提权失败
func TestOverrideStage_PermissionDenied(t *testing.T) {
	db := setupTestDB(t)
	seedStage(t, db, "stg-1", nil, 1, model.StageStatusPlanning)
	svc := NewProgressionService(db, auth.DenyAllChecker{}, nil)
	job := seedJob(t, db, "job-1", "tnt-1", "")

	_, err := svc.OverrideStage(context.Background(), &OverrideStageRequest{
		JobID:         job.ID,
		TargetStageID: "stg-1",
		ActorID:       "user-1",
		Reason:        "trying my luck",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

// TestOverrideStage_TenantScope 测试目标阶段必须属于作业的工作流
func TestOverrideStage_TenantScope(t *testing.T) {
	db := setupTestDB(t)
	seedStage(t, db, "stg-1", nil, 1, model.StageStatusPlanning)
	other := "tnt-other"
	seedStage(t, db, "stg-x", &other, 1, model.StageStatusActive)

	svc := NewProgressionService(db, auth.AllowAllChecker{}, nil)
	job := seedJob(t, db, "job-1", "tnt-1", "")

	_, err := svc.OverrideStage(context.Background(), &OverrideStageRequest{
		JobID:         job.ID,
		TargetStageID: "stg-x",
		ActorID:       "admin-1",
		Reason:        "wrong tenant",
	})
	assert.ErrorIs(t, err, ErrStageScope)
}

// TestEnterInitialStage_TenantFallback 测试租户无自有阶段时回退全局默认
func TestEnterInitialStage_TenantFallback(t *testing.T) {
	db := setupTestDB(t)
	seedStage(t, db, "stg-global", nil, 1, model.StageStatusPlanning)

	svc := NewProgressionService(db, auth.AllowAllChecker{}, nil)
	job := seedJob(t, db, "job-1", "tnt-without-stages", "")

	result, err := svc.EnterInitialStage(context.Background(), job.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "stg-global", result.ToStageID)
}

// TestEnterInitialStage_TenantOverride 测试租户自有阶段整体覆盖全局默认
func TestEnterInitialStage_TenantOverride(t *testing.T) {
	db := setupTestDB(t)
	seedStage(t, db, "stg-global", nil, 1, model.StageStatusPlanning)
	tenant := "tnt-1"
	seedStage(t, db, "stg-tenant", &tenant, 1, model.StageStatusPlanning)

	svc := NewProgressionService(db, auth.AllowAllChecker{}, nil)
	job := seedJob(t, db, "job-1", "tnt-1", "")

	result, err := svc.EnterInitialStage(context.Background(), job.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "stg-tenant", result.ToStageID)
}

// TestSubmitResponse_AtomicRollback 测试审计写入失败时整个流转回滚
func TestSubmitResponse_AtomicRollback(t *testing.T) {
	db, svc, job := newProgressionFixture(t)

	// 故障注入:成功流转的审计行(to 阶段非空)写入失败;
	// 失败诊断行(to 阶段为空)放行
	err := db.Callback().Create().Before("gorm:create").Register("fail_transition_audit", func(tx *gorm.DB) {
		if audit, ok := tx.Statement.Dest.(*model.TransitionAuditModel); ok && audit.ToStageID != nil {
			tx.AddError(fmt.Errorf("injected audit failure"))
		}
	})
	require.NoError(t, err)
	defer db.Callback().Create().Remove("fail_transition_audit")

	_, err = svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "Yes", ActorID: "user-1",
	})
	var ierr *InternalError
	require.True(t, errors.As(err, &ierr))
	assert.NotEmpty(t, ierr.Ref)

	// 阶段指针未移动
	var reloaded model.JobModel
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, "stg-1", *reloaded.CurrentStageID)

	// 目标阶段没有指标行,任务未实例化
	var metricCount int64
	db.Model(&model.StageMetricModel{}).Where("job_id = ? AND stage_id = ?", job.ID, "stg-2").Count(&metricCount)
	assert.Zero(t, metricCount)
	var taskCount int64
	db.Model(&model.JobTaskModel{}).Where("job_id = ?", job.ID).Count(&taskCount)
	assert.Zero(t, taskCount)

	// 失败诊断审计已补写,to 字段为空
	var failure model.TransitionAuditModel
	require.NoError(t, db.Where("job_id = ? AND to_stage_id IS NULL", job.ID).First(&failure).Error)
	assert.Contains(t, string(failure.Detail), "injected audit failure")

	// 应答本身已持久化(覆盖写发生在事务之外)
	var response model.ResponseModel
	require.NoError(t, db.First(&response, "job_id = ?", job.ID).Error)
	assert.Equal(t, "Yes", response.Value)
}

// TestSubmitResponse_TaskFailureDoesNotAbort 测试任务实例化失败不中止流转
func TestSubmitResponse_TaskFailureDoesNotAbort(t *testing.T) {
	db, svc, job := newProgressionFixture(t)

	err := db.Callback().Create().Before("gorm:create").Register("fail_task_create", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*model.JobTaskModel); ok {
			tx.AddError(fmt.Errorf("injected task failure"))
		}
	})
	require.NoError(t, err)
	defer db.Callback().Create().Remove("fail_task_create")

	result, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "Yes", ActorID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeTransitioned, result.Outcome)
	assert.Zero(t, result.TasksCreated)

	var reloaded model.JobModel
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, "stg-2", *reloaded.CurrentStageID)
}

// TestSubmitResponse_TaskFailureIsolatedPerTemplate 测试单个模板失败不影响其余模板与流转本身
// 失败的插入回滚到保存点,事务保持可用,其余任务照常提交
func TestSubmitResponse_TaskFailureIsolatedPerTemplate(t *testing.T) {
	db, svc, job := newProgressionFixture(t)
	seedTemplate(t, db, "ttp-broken", "stg-2", "doomed checklist", model.AssigneeRuleCreator)

	err := db.Callback().Create().Before("gorm:create").Register("fail_one_task_create", func(tx *gorm.DB) {
		if task, ok := tx.Statement.Dest.(*model.JobTaskModel); ok && task.TemplateID == "ttp-broken" {
			tx.AddError(fmt.Errorf("injected task failure"))
		}
	})
	require.NoError(t, err)
	defer db.Callback().Create().Remove("fail_one_task_create")

	result, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "Yes", ActorID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeTransitioned, result.Outcome)
	assert.Equal(t, 1, result.TasksCreated)

	// 流转已提交,幸存任务在库
	var reloaded model.JobModel
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, "stg-2", *reloaded.CurrentStageID)

	var tasks []*model.JobTaskModel
	require.NoError(t, db.Find(&tasks, "job_id = ?", job.ID).Error)
	require.Len(t, tasks, 1)
	assert.Equal(t, "ttp-1", tasks[0].TemplateID)
}

// TestSubmitResponse_MetricCountsCurrentVisitOnly 测试关闭指标只统计本次停留的任务
func TestSubmitResponse_MetricCountsCurrentVisitOnly(t *testing.T) {
	db, svc, job := newProgressionFixture(t)

	var open model.StageMetricModel
	require.NoError(t, db.First(&open, "job_id = ? AND stage_id = ? AND exited_at IS NULL", job.ID, "stg-1").Error)

	// 历史访问遗留的已完成任务:建于本次进入之前,不计入本次指标
	before := open.EnteredAt.Add(-time.Hour)
	seedJobTask(t, db, "tsk-old", job.ID, before, before.Add(24*time.Hour), 24, &before)

	// 本次停留内完成的任务
	within := open.EnteredAt.Add(time.Second)
	seedJobTask(t, db, "tsk-new", job.ID, within, within.Add(24*time.Hour), 24, &within)

	result, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "Yes", ActorID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeTransitioned, result.Outcome)

	var closed model.StageMetricModel
	require.NoError(t, db.First(&closed, "job_id = ? AND stage_id = ?", job.ID, "stg-1").Error)
	require.NotNil(t, closed.ExitedAt)
	assert.Equal(t, 1, closed.CompletedTasks)
	assert.Zero(t, closed.OverdueTasks)
}

// TestSubmitResponse_MetricCountFailureRollsBack 测试任务统计查询失败时整个流转回滚
func TestSubmitResponse_MetricCountFailureRollsBack(t *testing.T) {
	db, svc, job := newProgressionFixture(t)

	err := db.Callback().Query().Before("gorm:query").Register("fail_task_count", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Model.(*model.JobTaskModel); ok {
			tx.AddError(fmt.Errorf("injected count failure"))
		}
	})
	require.NoError(t, err)
	defer db.Callback().Query().Remove("fail_task_count")

	_, err = svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: job.ID, QuestionID: "qst-1", Value: "Yes", ActorID: "user-1",
	})
	var ierr *InternalError
	require.True(t, errors.As(err, &ierr))

	// 阶段指针未移动,stg-1 指标仍保持打开
	var reloaded model.JobModel
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, "stg-1", *reloaded.CurrentStageID)

	var metric model.StageMetricModel
	require.NoError(t, db.First(&metric, "job_id = ? AND stage_id = ?", job.ID, "stg-1").Error)
	assert.Nil(t, metric.ExitedAt)
}

// TestSubmitResponse_JobNotFound 测试作业不存在
func TestSubmitResponse_JobNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProgressionService(db, auth.AllowAllChecker{}, nil)

	_, err := svc.SubmitResponse(context.Background(), &SubmitResponseRequest{
		JobID: "job-missing", QuestionID: "qst-1", Value: "Yes", ActorID: "user-1",
	})
	assert.ErrorIs(t, err, ErrJobNotFound)
}
