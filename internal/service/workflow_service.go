package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mautops/jobflow-gin/internal/engine"
	"github.com/mautops/jobflow-gin/internal/model"
	"github.com/mautops/jobflow-gin/internal/repository"
	"gorm.io/gorm"
)

// WorkflowService 工作流定义服务接口
// 阶段、流转边、问题与任务模板的定义面;
// 图完整性(自环、自动边环)在这里的定义期拒绝,提交期永不检查
type WorkflowService interface {
	CreateStage(ctx context.Context, req *CreateStageRequest) (*model.StageModel, error)
	ListStages(tenantID string) ([]*model.StageModel, error)
	CreateTransition(ctx context.Context, req *CreateTransitionRequest) (*model.TransitionModel, error)
	DeleteTransition(ctx context.Context, id string) error
	CreateQuestion(ctx context.Context, req *CreateQuestionRequest) (*model.QuestionModel, error)
	ListQuestions(stageID string) ([]*model.QuestionModel, error)
	CreateTaskTemplate(ctx context.Context, req *CreateTaskTemplateRequest) (*model.TaskTemplateModel, error)
	ListTaskTemplates(stageID string) ([]*model.TaskTemplateModel, error)
}

// CreateStageRequest 创建阶段请求
// @Description 创建工作流阶段的请求参数
type CreateStageRequest struct {
	TenantID         string `json:"tenant_id" example:"tnt-001"` // 所属租户,留空为全局默认
	Name             string `json:"name" example:"现场勘查" binding:"required"`
	Ordinal          int    `json:"ordinal" example:"1" binding:"required"` // 序号,作用域内唯一
	Status           string `json:"status" example:"active" binding:"required"` // 映射的业务状态
	Kind             string `json:"kind" example:"standard"` // standard/milestone/approval
	MinDurationHours int    `json:"min_duration_hours" example:"4"`
	MaxDurationHours int    `json:"max_duration_hours" example:"72"`
	ApprovalRequired bool   `json:"approval_required" example:"false"`
}

// CreateTransitionRequest 创建流转边请求
// @Description 创建阶段流转边的请求参数
type CreateTransitionRequest struct {
	FromStageID     string `json:"from_stage_id" example:"stg-001" binding:"required"`
	ToStageID       string `json:"to_stage_id" example:"stg-002" binding:"required"`
	TriggerValue    string `json:"trigger_value" example:"Yes"` // 触发文本
	Condition       string `json:"condition" example:">=90"` // 条件表达式
	Automatic       *bool  `json:"automatic" example:"true"` // 缺省为 true
	RequireOverride bool   `json:"require_override" example:"false"`
	Ordinal         int    `json:"ordinal" example:"0"` // 声明顺序
}

// CreateQuestionRequest 创建问题请求
// @Description 创建阶段问题的请求参数
type CreateQuestionRequest struct {
	StageID       string          `json:"stage_id" example:"stg-001" binding:"required"`
	Prompt        string          `json:"prompt" example:"现场勘查是否通过?" binding:"required"`
	ResponseType  string          `json:"response_type" example:"yes_no" binding:"required"`
	Ordinal       int             `json:"ordinal" example:"1" binding:"required"`
	Required      *bool           `json:"required" example:"true"` // 缺省为 true
	SkipCondition json.RawMessage `json:"skip_condition,omitempty" swaggertype:"object"`
	Options       json.RawMessage `json:"options,omitempty" swaggertype:"array,string"`
}

// CreateTaskTemplateRequest 创建任务模板请求
// @Description 创建任务模板的请求参数
type CreateTaskTemplateRequest struct {
	StageID        string          `json:"stage_id" example:"stg-001" binding:"required"`
	Title          string          `json:"title" example:"提交勘查报告" binding:"required"`
	Description    string          `json:"description"`
	Checklist      json.RawMessage `json:"checklist,omitempty" swaggertype:"array,string"`
	RequireUpload  bool            `json:"require_upload" example:"true"`
	DueOffsetHours int             `json:"due_offset_hours" example:"48"`
	Priority       string          `json:"priority" example:"high"`
	AssigneeRule   string          `json:"assignee_rule" example:"lead"`
	SLAHours       int             `json:"sla_hours" example:"24"`
}

type workflowService struct {
	stageRepo    repository.StageRepository
	questionRepo repository.QuestionRepository
	templateRepo repository.TaskTemplateRepository
	auditLogSvc  AuditLogService
	db           *gorm.DB
}

// NewWorkflowService 创建工作流定义服务
func NewWorkflowService(db *gorm.DB, auditLogSvc AuditLogService) WorkflowService {
	return &workflowService{
		stageRepo:    repository.NewStageRepository(db),
		questionRepo: repository.NewQuestionRepository(db),
		templateRepo: repository.NewTaskTemplateRepository(db),
		auditLogSvc:  auditLogSvc,
		db:           db,
	}
}

// CreateStage 创建阶段
func (s *workflowService) CreateStage(ctx context.Context, req *CreateStageRequest) (*model.StageModel, error) {
	stage := &model.StageModel{
		ID:               generateID("stg"),
		Name:             req.Name,
		Ordinal:          req.Ordinal,
		Status:           req.Status,
		Kind:             defaultKind(req.Kind),
		MinDurationHours: req.MinDurationHours,
		MaxDurationHours: req.MaxDurationHours,
		ApprovalRequired: req.ApprovalRequired,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if req.TenantID != "" {
		tenantID := req.TenantID
		stage.TenantID = &tenantID
	}
	if err := stage.Validate(); err != nil {
		return nil, &engine.ValidationError{Field: "stage", Reason: err.Error()}
	}

	// 序号在所属作用域内唯一
	var count int64
	query := s.db.Model(&model.StageModel{}).Where("ordinal = ?", req.Ordinal)
	if stage.TenantID != nil {
		query = query.Where("tenant_id = ?", *stage.TenantID)
	} else {
		query = query.Where("tenant_id IS NULL")
	}
	if err := query.Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &engine.ValidationError{Field: "ordinal", Reason: "ordinal already used within this scope"}
	}

	if err := s.stageRepo.SaveStage(stage); err != nil {
		return nil, err
	}
	s.recordAction(ctx, "create", "stage", stage.ID, req)
	return stage, nil
}

// ListStages 列出租户生效的阶段集
func (s *workflowService) ListStages(tenantID string) ([]*model.StageModel, error) {
	return s.stageRepo.FindStagesForTenant(tenantID)
}

// CreateTransition 创建流转边
// 自环直接拒绝;新增后仅经自动边可达的环在此拒绝,永不进入存储
func (s *workflowService) CreateTransition(ctx context.Context, req *CreateTransitionRequest) (*model.TransitionModel, error) {
	from, err := s.stageRepo.FindStageByID(req.FromStageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}
	if _, err := s.stageRepo.FindStageByID(req.ToStageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}

	automatic := true
	if req.Automatic != nil {
		automatic = *req.Automatic
	}
	transition := &model.TransitionModel{
		ID:              generateID("trn"),
		FromStageID:     req.FromStageID,
		ToStageID:       req.ToStageID,
		TriggerValue:    req.TriggerValue,
		Condition:       req.Condition,
		Automatic:       automatic,
		RequireOverride: req.RequireOverride,
		Ordinal:         req.Ordinal,
		CreatedAt:       time.Now(),
	}
	if err := transition.Validate(); err != nil {
		return nil, &GraphIntegrityError{Reason: err.Error()}
	}

	// 条件表达式必须可解析
	if transition.Condition != "" {
		if _, err := engine.ParseCondition(transition.Condition); err != nil {
			return nil, &engine.ValidationError{Field: "condition", Reason: err.Error()}
		}
	}

	// 自动边环检查,作用域为起点阶段所属的工作流
	scope, err := s.scopeStageIDs(from)
	if err != nil {
		return nil, err
	}
	existing, err := s.stageRepo.FindTransitionsAmong(scope)
	if err != nil {
		return nil, err
	}
	if engine.WouldCreateAutomaticCycle(existing, transition) {
		return nil, &GraphIntegrityError{Reason: "transition would create a cycle reachable through automatic edges"}
	}

	if err := s.stageRepo.SaveTransition(transition); err != nil {
		return nil, err
	}
	s.recordAction(ctx, "create", "transition", transition.ID, req)
	return transition, nil
}

// DeleteTransition 删除流转边
func (s *workflowService) DeleteTransition(ctx context.Context, id string) error {
	if err := s.stageRepo.DeleteTransition(id); err != nil {
		return err
	}
	s.recordAction(ctx, "delete", "transition", id, nil)
	return nil
}

// CreateQuestion 创建问题
func (s *workflowService) CreateQuestion(ctx context.Context, req *CreateQuestionRequest) (*model.QuestionModel, error) {
	if _, err := s.stageRepo.FindStageByID(req.StageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}

	required := true
	if req.Required != nil {
		required = *req.Required
	}
	question := &model.QuestionModel{
		ID:            generateID("qst"),
		StageID:       req.StageID,
		Prompt:        req.Prompt,
		ResponseType:  req.ResponseType,
		Ordinal:       req.Ordinal,
		Required:      required,
		SkipCondition: []byte(req.SkipCondition),
		Options:       []byte(req.Options),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := question.Validate(); err != nil {
		return nil, &engine.ValidationError{Field: "question", Reason: err.Error()}
	}
	// 跳过条件必须可解析
	if _, err := engine.ParseSkipCondition(question.SkipCondition); err != nil {
		return nil, &engine.ValidationError{Field: "skip_condition", Reason: err.Error()}
	}

	// 序号在阶段内唯一
	var count int64
	if err := s.db.Model(&model.QuestionModel{}).
		Where("stage_id = ? AND ordinal = ?", req.StageID, req.Ordinal).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &engine.ValidationError{Field: "ordinal", Reason: "ordinal already used within this stage"}
	}

	if err := s.questionRepo.Save(question); err != nil {
		return nil, err
	}
	s.recordAction(ctx, "create", "question", question.ID, req)
	return question, nil
}

// ListQuestions 列出阶段的问题
func (s *workflowService) ListQuestions(stageID string) ([]*model.QuestionModel, error) {
	return s.questionRepo.FindByStageID(stageID)
}

// CreateTaskTemplate 创建任务模板
func (s *workflowService) CreateTaskTemplate(ctx context.Context, req *CreateTaskTemplateRequest) (*model.TaskTemplateModel, error) {
	if _, err := s.stageRepo.FindStageByID(req.StageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}

	template := &model.TaskTemplateModel{
		ID:             generateID("ttp"),
		StageID:        req.StageID,
		Title:          req.Title,
		Description:    req.Description,
		Checklist:      []byte(req.Checklist),
		RequireUpload:  req.RequireUpload,
		DueOffsetHours: defaultOffset(req.DueOffsetHours),
		Priority:       defaultPriority(req.Priority),
		AssigneeRule:   defaultAssigneeRule(req.AssigneeRule),
		SLAHours:       req.SLAHours,
		Active:         true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := template.Validate(); err != nil {
		return nil, &engine.ValidationError{Field: "template", Reason: err.Error()}
	}

	if err := s.templateRepo.Save(template); err != nil {
		return nil, err
	}
	s.recordAction(ctx, "create", "template", template.ID, req)
	return template, nil
}

// ListTaskTemplates 列出阶段的任务模板
func (s *workflowService) ListTaskTemplates(stageID string) ([]*model.TaskTemplateModel, error) {
	return s.templateRepo.FindByStageID(stageID)
}

// scopeStageIDs 返回与 stage 同作用域的全部阶段 ID
func (s *workflowService) scopeStageIDs(stage *model.StageModel) ([]string, error) {
	var stages []*model.StageModel
	query := s.db.Model(&model.StageModel{})
	if stage.TenantID != nil {
		query = query.Where("tenant_id = ?", *stage.TenantID)
	} else {
		query = query.Where("tenant_id IS NULL")
	}
	if err := query.Find(&stages).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(stages))
	for _, item := range stages {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// recordAction 记录定义面的操作审计
func (s *workflowService) recordAction(ctx context.Context, action, resourceType, resourceID string, details interface{}) {
	if s.auditLogSvc == nil {
		return
	}
	userID := getUserIDFromContext(ctx)
	if userID == "" {
		userID = "system"
	}
	_ = s.auditLogSvc.RecordAction(ctx, userID, action, resourceType, resourceID, details)
}

// defaultKind 阶段类型缺省为 standard
func defaultKind(kind string) string {
	if kind == "" {
		return model.StageKindStandard
	}
	return kind
}

// defaultPriority 优先级缺省为 medium
func defaultPriority(priority string) string {
	if priority == "" {
		return model.TaskPriorityMedium
	}
	return priority
}

// defaultAssigneeRule 指派规则缺省为 creator
func defaultAssigneeRule(rule string) string {
	if rule == "" {
		return model.AssigneeRuleCreator
	}
	return rule
}

// defaultOffset 截止偏移缺省为 24 小时
func defaultOffset(hours int) int {
	if hours <= 0 {
		return 24
	}
	return hours
}
