package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/jobflow-gin/internal/auth"
	"github.com/mautops/jobflow-gin/internal/engine"
	"github.com/mautops/jobflow-gin/internal/metrics"
	"github.com/mautops/jobflow-gin/internal/model"
	"github.com/mautops/jobflow-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressionService 阶段推进服务接口
// 问答驱动的作业阶段状态机入口:提交应答、管理员覆盖、初始进入
type ProgressionService interface {
	SubmitResponse(ctx context.Context, req *SubmitResponseRequest) (*engine.SubmitResult, error)
	OverrideStage(ctx context.Context, req *OverrideStageRequest) (*OverrideResult, error)
	EnterInitialStage(ctx context.Context, jobID string, actorID string) (*engine.SubmitResult, error)
}

// SubmitResponseRequest 应答提交请求
// @Description 对某作业某问题提交应答的请求参数
type SubmitResponseRequest struct {
	JobID      string          `json:"job_id" example:"job-001"` // 作业 ID,路由参数优先
	QuestionID string          `json:"question_id" example:"qst-001" binding:"required"` // 问题 ID
	Value      string          `json:"value" example:"Yes" binding:"required"` // 应答值
	ActorID    string          `json:"actor_id" example:"user-001"` // 应答人(缺省取认证上下文)
	Source     string          `json:"source" example:"web"` // 来源渠道
	Metadata   json.RawMessage `json:"metadata,omitempty" swaggertype:"object"` // 结构化元数据
}

// OverrideStageRequest 管理员覆盖请求
// @Description 无条件移动作业阶段的请求参数
type OverrideStageRequest struct {
	JobID         string `json:"job_id" example:"job-001"` // 作业 ID,路由参数优先
	TargetStageID string `json:"target_stage_id" example:"stg-010" binding:"required"` // 目标阶段 ID
	ActorID       string `json:"actor_id" example:"user-001"` // 操作人
	Reason        string `json:"reason" example:"client escalation" binding:"required"` // 覆盖原因,进入审计载荷
}

// OverrideResult 管理员覆盖结果
type OverrideResult struct {
	AuditID      string `json:"audit_id"`
	FromStageID  string `json:"from_stage_id,omitempty"`
	ToStageID    string `json:"to_stage_id"`
	TasksCreated int    `json:"tasks_created"`
}

// errStageMoved 并发提交下锁内重读发现阶段已变化
var errStageMoved = errors.New("stage moved concurrently")

type progressionService struct {
	db           *gorm.DB
	stageRepo    repository.StageRepository
	questionRepo repository.QuestionRepository
	responseRepo repository.ResponseRepository
	templateRepo repository.TaskTemplateRepository
	jobRepo      repository.JobRepository
	permission   auth.PermissionChecker
	directory    engine.UserDirectory
	logger       *logrus.Entry
}

// NewProgressionService 创建阶段推进服务
func NewProgressionService(
	db *gorm.DB,
	permission auth.PermissionChecker,
	directory engine.UserDirectory,
) ProgressionService {
	if directory == nil {
		directory = engine.NoopDirectory{}
	}
	return &progressionService{
		db:           db,
		stageRepo:    repository.NewStageRepository(db),
		questionRepo: repository.NewQuestionRepository(db),
		responseRepo: repository.NewResponseRepository(db),
		templateRepo: repository.NewTaskTemplateRepository(db),
		jobRepo:      repository.NewJobRepository(db),
		permission:   permission,
		directory:    directory,
		logger:       logrus.WithField("component", "progression"),
	}
}

// SubmitResponse 提交应答
// 顺序: 格式校验 → 记录应答(覆盖写) → 跳过条件 → 流转求值 →
// 命中则在单事务内移动阶段/关开指标/追加审计/实例化任务
// 无命中属正常结果,应答已持久化,作业停留在当前阶段
func (s *progressionService) SubmitResponse(ctx context.Context, req *SubmitResponseRequest) (*engine.SubmitResult, error) {
	job, err := s.jobRepo.FindByID(req.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, s.internal("load job", err)
	}

	question, err := s.questionRepo.FindByID(req.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, s.internal("load question", err)
	}

	// 1. 格式校验,任何状态变更之前拒绝
	if verr := engine.ValidateResponse(question, req.Value); verr != nil {
		return nil, verr
	}

	// 2. 记录应答(同作业同问题覆盖写)
	response := &model.ResponseModel{
		ID:         generateID("rsp"),
		JobID:      job.ID,
		QuestionID: question.ID,
		Value:      req.Value,
		Metadata:   []byte(req.Metadata),
		ActorID:    req.ActorID,
		Source:     defaultSource(req.Source),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.responseRepo.Upsert(response); err != nil {
		return nil, s.internal("record response", err)
	}
	current, err := s.responseRepo.FindByJobAndQuestion(job.ID, question.ID)
	if err != nil {
		return nil, s.internal("reload response", err)
	}

	// 3. 跳过条件:命中时应答已记录,不做流转求值
	skipCond, err := engine.ParseSkipCondition(question.SkipCondition)
	if err != nil {
		return nil, s.internal("parse skip condition", err)
	}
	skip, err := engine.ShouldSkip(skipCond, job, s.priorResponseLookup)
	if err != nil {
		return nil, s.internal("evaluate skip condition", err)
	}
	if skip {
		metrics.RecordSubmission(string(engine.OutcomeSkipped))
		return &engine.SubmitResult{Outcome: engine.OutcomeSkipped, ResponseID: current.ID}, nil
	}

	// 作业尚未进入任何阶段时没有可求值的边
	if job.CurrentStageID == nil {
		metrics.RecordSubmission(string(engine.OutcomeRecorded))
		return &engine.SubmitResult{Outcome: engine.OutcomeRecorded, ResponseID: current.ID}, nil
	}

	// 4. 流转求值
	candidates, err := s.stageRepo.FindTransitionsFrom(*job.CurrentStageID)
	if err != nil {
		return nil, s.internal("load transitions", err)
	}
	transition := engine.Evaluate(candidates, req.Value)
	if transition == nil {
		metrics.RecordSubmission(string(engine.OutcomeNoTransition))
		return &engine.SubmitResult{Outcome: engine.OutcomeNoTransition, ResponseID: current.ID}, nil
	}

	toStage, err := s.stageRepo.FindStageByID(transition.ToStageID)
	if err != nil {
		return nil, s.internal("load target stage", err)
	}

	// 5. 原子应用流转
	detail := map[string]interface{}{
		"transition_id": transition.ID,
		"trigger_value": req.Value,
	}
	applied, err := s.applyTransition(job.ID, job.CurrentStageID, toStage, req.ActorID, applyContext{
		TriggerSource: model.TriggerSourceQuestionResponse,
		QuestionID:    &question.ID,
		ResponseID:    &current.ID,
		Detail:        detail,
	})
	if errors.Is(err, errStageMoved) {
		// 并发提交抢先移动了阶段,本次按无流转上报
		metrics.RecordSubmission(string(engine.OutcomeNoTransition))
		return &engine.SubmitResult{Outcome: engine.OutcomeNoTransition, ResponseID: current.ID}, nil
	}
	if err != nil {
		s.writeFailureAudit(job.ID, req.ActorID, model.TriggerSourceQuestionResponse, err)
		return nil, s.internal("apply transition", err)
	}

	metrics.RecordSubmission(string(engine.OutcomeTransitioned))
	metrics.RecordTransition(model.TriggerSourceQuestionResponse)
	metrics.RecordTasksGenerated(applied.TasksCreated)

	return &engine.SubmitResult{
		Outcome:      engine.OutcomeTransitioned,
		ResponseID:   current.ID,
		FromStageID:  applied.FromStageID,
		ToStageID:    toStage.ID,
		FromStatus:   applied.FromStatus,
		ToStatus:     toStage.Status,
		TasksCreated: applied.TasksCreated,
		AuditID:      applied.AuditID,
	}, nil
}

// OverrideStage 管理员覆盖
// 越过求值器直接调用状态更新,审计来源为 admin_override;
// 这是唯一允许在无图边的情况下移动作业阶段的路径
func (s *progressionService) OverrideStage(ctx context.Context, req *OverrideStageRequest) (*OverrideResult, error) {
	job, err := s.jobRepo.FindByID(req.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, s.internal("load job", err)
	}

	// 提权检查由外部身份协作方承担
	if s.permission != nil {
		allowed, err := s.permission.CanOverrideStage(ctx, req.ActorID, job.TenantID)
		if err != nil {
			return nil, s.internal("check override permission", err)
		}
		if !allowed {
			return nil, ErrPermissionDenied
		}
	}

	target, err := s.stageRepo.FindStageByID(req.TargetStageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		return nil, s.internal("load target stage", err)
	}
	if target.TenantID != nil && *target.TenantID != job.TenantID {
		return nil, ErrStageScope
	}

	detail := map[string]interface{}{
		"reason": req.Reason,
	}
	applied, err := s.applyTransition(job.ID, job.CurrentStageID, target, req.ActorID, applyContext{
		TriggerSource: model.TriggerSourceAdminOverride,
		Detail:        detail,
		IgnoreMoved:   true,
	})
	if err != nil {
		s.writeFailureAudit(job.ID, req.ActorID, model.TriggerSourceAdminOverride, err)
		return nil, s.internal("apply override", err)
	}

	metrics.RecordTransition(model.TriggerSourceAdminOverride)
	metrics.RecordTasksGenerated(applied.TasksCreated)

	return &OverrideResult{
		AuditID:      applied.AuditID,
		FromStageID:  applied.FromStageID,
		ToStageID:    target.ID,
		TasksCreated: applied.TasksCreated,
	}, nil
}

// EnterInitialStage 作业进入其工作流的初始阶段(序号 1)
// 创建作业后调用一次,打开首个阶段指标并实例化初始任务
func (s *progressionService) EnterInitialStage(ctx context.Context, jobID string, actorID string) (*engine.SubmitResult, error) {
	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, s.internal("load job", err)
	}

	initial, err := s.stageRepo.FindInitialStage(job.TenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		return nil, s.internal("resolve initial stage", err)
	}

	applied, err := s.applyTransition(job.ID, nil, initial, actorID, applyContext{
		TriggerSource: model.TriggerSourceSystem,
		Detail:        map[string]interface{}{"event": "initial_entry"},
		IgnoreMoved:   true,
	})
	if err != nil {
		return nil, s.internal("enter initial stage", err)
	}

	metrics.RecordTasksGenerated(applied.TasksCreated)

	return &engine.SubmitResult{
		Outcome:      engine.OutcomeTransitioned,
		ToStageID:    initial.ID,
		ToStatus:     initial.Status,
		TasksCreated: applied.TasksCreated,
		AuditID:      applied.AuditID,
	}, nil
}

// applyContext 一次状态更新的触发上下文
type applyContext struct {
	TriggerSource string
	QuestionID    *string
	ResponseID    *string
	Detail        map[string]interface{}
	// IgnoreMoved 为真时不因并发移动中止(覆盖与初始进入总是生效)
	IgnoreMoved bool
}

// applyResult 状态更新的产物
type applyResult struct {
	AuditID      string
	FromStageID  string
	FromStatus   string
	TasksCreated int
}

// applyTransition 原子地应用一次阶段移动
// 单事务内: 锁定作业行(作业级互斥边界) → 计算前一阶段停留时长 →
// 移动阶段指针与派生状态 → 关闭旧指标/打开新指标 → 追加审计 →
// 实例化任务(单个失败只记日志,不中止流转)
// 部分应用(指针已动而审计缺失)被事务边界排除
func (s *progressionService) applyTransition(jobID string, expectedFrom *string, toStage *model.StageModel, actorID string, actx applyContext) (*applyResult, error) {
	now := time.Now()
	result := &applyResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 作业行锁:同一作业的并发提交在此串行化
		// SQLite 不支持 FOR UPDATE,事务本身已是串行化边界
		var job model.JobModel
		query := tx.Where("id = ?", jobID)
		if name := tx.Dialector.Name(); name != "sqlite" && name != "sqlite3" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.First(&job).Error; err != nil {
			return err
		}

		// 锁内重读:读-求值-写序列期间阶段被并发移动时中止
		if !actx.IgnoreMoved && !sameStagePointer(job.CurrentStageID, expectedFrom) {
			return errStageMoved
		}

		var durationSeconds int64
		var fromStageID, fromStatus *string
		if job.CurrentStageID != nil {
			fromStageID = job.CurrentStageID
			status := job.Status
			fromStatus = &status
			result.FromStageID = *job.CurrentStageID
			result.FromStatus = job.Status
			if job.StageEnteredAt != nil {
				durationSeconds = int64(now.Sub(*job.StageEnteredAt).Seconds())
			}
		}

		// 移动阶段指针与派生状态
		job.CurrentStageID = &toStage.ID
		job.StageEnteredAt = &now
		job.Status = toStage.Status
		job.UpdatedAt = now
		if err := tx.Save(&job).Error; err != nil {
			return err
		}

		// 关闭前一阶段的打开指标
		if fromStageID != nil {
			var open model.StageMetricModel
			err := tx.Where("job_id = ? AND exited_at IS NULL", job.ID).First(&open).Error
			if err == nil {
				// 任务统计按本次停留计,以进入时刻为界,不累加历史访问
				completed, overdue, err := repository.NewJobTaskRepository(tx).
					CountByStageVisit(job.ID, open.StageID, open.EnteredAt, now)
				if err != nil {
					return err
				}

				exited := now
				duration := durationSeconds
				open.ExitedAt = &exited
				open.DurationSeconds = &duration
				open.CompletedTasks = int(completed)
				open.OverdueTasks = int(overdue)
				open.Converted = true
				open.UpdatedAt = now
				if err := tx.Save(&open).Error; err != nil {
					return err
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		// 打开新阶段的指标
		metric := &model.StageMetricModel{
			ID:        generateID("mtr"),
			JobID:     job.ID,
			StageID:   toStage.ID,
			EnteredAt: now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(metric).Error; err != nil {
			return err
		}

		// 追加审计记录
		detail, _ := json.Marshal(actx.Detail)
		toStatus := toStage.Status
		audit := &model.TransitionAuditModel{
			ID:              generateID("aud"),
			JobID:           job.ID,
			FromStageID:     fromStageID,
			ToStageID:       &toStage.ID,
			FromStatus:      fromStatus,
			ToStatus:        &toStatus,
			TriggerSource:   actx.TriggerSource,
			ActorID:         actorID,
			Detail:          detail,
			QuestionID:      actx.QuestionID,
			ResponseID:      actx.ResponseID,
			DurationSeconds: durationSeconds,
			CreatedAt:       now,
		}
		if err := tx.Create(audit).Error; err != nil {
			return err
		}
		result.AuditID = audit.ID

		// 实例化新阶段的任务模板
		// 任务簿记相对阶段移动是次要的:单个模板实例化失败
		// 只记日志计零,不中止流转
		result.TasksCreated = s.instantiateTasks(tx, &job, toStage.ID, actorID, now)

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// instantiateTasks 按阶段的启用模板实例化作业任务,返回成功数
// 每条插入包在保存点里:PostgreSQL 上失败语句会让整个事务进入中止态,
// 回滚到保存点把损害限制在单条任务内,阶段移动照常提交
func (s *progressionService) instantiateTasks(tx *gorm.DB, job *model.JobModel, stageID string, actorID string, now time.Time) int {
	var templates []*model.TaskTemplateModel
	if err := tx.Where("stage_id = ? AND active = ?", stageID, true).
		Order("created_at ASC").Find(&templates).Error; err != nil {
		s.logger.WithError(err).WithField("stage_id", stageID).Warn("failed to load task templates")
		return 0
	}

	created := 0
	for index, template := range templates {
		task := &model.JobTaskModel{
			ID:         generateID("jtk"),
			JobID:      job.ID,
			TemplateID: template.ID,
			StageID:    stageID,
			Title:      template.Title,
			Status:     model.JobTaskStatusOpen,
			AssigneeID: engine.ResolveAssignee(template.AssigneeRule, job, actorID, s.directory),
			Priority:   template.Priority,
			Checklist:  template.Checklist,
			DueAt:      now.Add(time.Duration(template.DueOffsetHours) * time.Hour),
			SLAHours:   template.EffectiveSLAHours(),
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		savepoint := fmt.Sprintf("task_%d", index)
		if err := tx.SavePoint(savepoint).Error; err != nil {
			s.logger.WithError(err).WithField("job_id", job.ID).Warn("failed to create task savepoint")
			return created
		}
		if err := tx.Create(task).Error; err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"job_id":      job.ID,
				"template_id": template.ID,
			}).Warn("failed to instantiate task template")
			if err := tx.RollbackTo(savepoint).Error; err != nil {
				s.logger.WithError(err).WithField("job_id", job.ID).Warn("failed to roll back task savepoint")
				return created
			}
			continue
		}
		created++
	}
	return created
}

// writeFailureAudit 事务回滚后补写诊断审计(尽力而为)
// to 阶段与状态为空标识失败记录,作业阶段指针未发生变化
func (s *progressionService) writeFailureAudit(jobID, actorID, source string, cause error) {
	detail, _ := json.Marshal(map[string]interface{}{
		"failed": true,
		"error":  cause.Error(),
	})
	audit := &model.TransitionAuditModel{
		ID:            generateID("aud"),
		JobID:         jobID,
		TriggerSource: model.TriggerSourceSystem,
		ActorID:       actorID,
		Detail:        detail,
		CreatedAt:     time.Now(),
	}
	if err := s.db.Create(audit).Error; err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Warn("failed to write failure audit")
	}
}

// priorResponseLookup 跳过条件引用的先前应答查询
func (s *progressionService) priorResponseLookup(jobID, questionID string) (string, error) {
	response, err := s.responseRepo.FindByJobAndQuestion(jobID, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return response.Value, nil
}

// internal 记录根因并返回带引用码的不透明错误
func (s *progressionService) internal(op string, cause error) error {
	ref := uuid.NewString()[:8]
	s.logger.WithError(cause).WithField("ref", ref).Errorf("%s failed", op)
	return &InternalError{Ref: ref}
}

// sameStagePointer 比较两个可空阶段指针
func sameStagePointer(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// defaultSource 来源渠道缺省为 api
func defaultSource(source string) string {
	if source == "" {
		return model.ResponseSourceAPI
	}
	return source
}

// generateID 生成带类型前缀的 ID
func generateID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
