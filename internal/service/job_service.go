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

// JobService 作业服务接口
// 作业的创建与查询面;创建后立即进入其工作流的初始阶段
type JobService interface {
	Create(ctx context.Context, req *CreateJobRequest) (*JobDetail, error)
	Get(id string) (*JobDetail, error)
	ListByTenant(tenantID string) ([]*model.JobModel, error)
	ListTasks(jobID string) ([]*model.JobTaskModel, error)
	CompleteTask(ctx context.Context, taskID string, req *CompleteTaskRequest) (*model.JobTaskModel, error)
	History(jobID string) ([]*model.TransitionAuditModel, error)
	ListResponses(jobID string) ([]*model.ResponseModel, error)
}

// CreateJobRequest 创建作业请求
// @Description 创建作业的请求参数
type CreateJobRequest struct {
	TenantID string `json:"tenant_id" example:"tnt-001" binding:"required"` // 租户 ID
	Name     string `json:"name" example:"仓库扩建" binding:"required"`
	Category string `json:"category" example:"construction"` // 作业类别,跳过条件可引用
	OwnerID  string `json:"owner_id" example:"user-001" binding:"required"` // 归属人(外部身份)
	LeadID   string `json:"lead_id" example:"user-002"` // 负责人,任务指派规则 lead 引用
}

// CompleteTaskRequest 完成任务请求
// @Description 完成作业任务的请求参数
type CompleteTaskRequest struct {
	ActorID   string          `json:"actor_id" example:"user-001"`
	Artifacts json.RawMessage `json:"artifacts,omitempty" swaggertype:"array,string"` // 完成产物(附件引用)
}

// JobDetail 作业详情
type JobDetail struct {
	Job          *model.JobModel   `json:"job"`
	CurrentStage *model.StageModel `json:"current_stage,omitempty"`
	TasksCreated int               `json:"tasks_created,omitempty"` // 创建时实例化的任务数
}

type jobService struct {
	db          *gorm.DB
	jobRepo     repository.JobRepository
	stageRepo   repository.StageRepository
	taskRepo    repository.JobTaskRepository
	auditRepo   repository.TransitionAuditRepository
	responses   repository.ResponseRepository
	progression ProgressionService
}

// NewJobService 创建作业服务
func NewJobService(db *gorm.DB, progression ProgressionService) JobService {
	return &jobService{
		db:          db,
		jobRepo:     repository.NewJobRepository(db),
		stageRepo:   repository.NewStageRepository(db),
		taskRepo:    repository.NewJobTaskRepository(db),
		auditRepo:   repository.NewTransitionAuditRepository(db),
		responses:   repository.NewResponseRepository(db),
		progression: progression,
	}
}

// Create 创建作业并进入初始阶段
func (s *jobService) Create(ctx context.Context, req *CreateJobRequest) (*JobDetail, error) {
	job := &model.JobModel{
		ID:        generateID("job"),
		TenantID:  req.TenantID,
		Name:      req.Name,
		Category:  req.Category,
		Status:    model.StageStatusPlanning,
		OwnerID:   req.OwnerID,
		LeadID:    req.LeadID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := job.Validate(); err != nil {
		return nil, &engine.ValidationError{Field: "job", Reason: err.Error()}
	}
	if err := s.jobRepo.Save(job); err != nil {
		return nil, err
	}

	entry, err := s.progression.EnterInitialStage(ctx, job.ID, req.OwnerID)
	if err != nil {
		return nil, err
	}

	return s.detail(job.ID, entry.TasksCreated)
}

// Get 获取作业详情
func (s *jobService) Get(id string) (*JobDetail, error) {
	return s.detail(id, 0)
}

// ListByTenant 列出租户的作业
func (s *jobService) ListByTenant(tenantID string) ([]*model.JobModel, error) {
	return s.jobRepo.FindByTenant(tenantID)
}

// ListTasks 列出作业的任务
func (s *jobService) ListTasks(jobID string) ([]*model.JobTaskModel, error) {
	if _, err := s.jobRepo.FindByID(jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return s.taskRepo.FindByJobID(jobID)
}

// CompleteTask 完成作业任务
// 模板要求上传时必须携带完成产物
func (s *jobService) CompleteTask(ctx context.Context, taskID string, req *CompleteTaskRequest) (*model.JobTaskModel, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	if task.CompletedAt != nil {
		return task, nil
	}

	var template model.TaskTemplateModel
	if err := s.db.Where("id = ?", task.TemplateID).First(&template).Error; err == nil {
		if template.RequireUpload && len(req.Artifacts) == 0 {
			return nil, &engine.ValidationError{Field: "artifacts", Reason: "this task requires a completion upload"}
		}
	}

	now := time.Now()
	task.Status = model.JobTaskStatusCompleted
	task.CompletedAt = &now
	task.CompletedBy = req.ActorID
	task.Artifacts = []byte(req.Artifacts)
	task.UpdatedAt = now
	if err := s.taskRepo.Save(task); err != nil {
		return nil, err
	}
	return task, nil
}

// History 列出作业的流转审计历史
func (s *jobService) History(jobID string) ([]*model.TransitionAuditModel, error) {
	if _, err := s.jobRepo.FindByID(jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return s.auditRepo.FindByJobID(jobID)
}

// ListResponses 列出作业的当前应答
func (s *jobService) ListResponses(jobID string) ([]*model.ResponseModel, error) {
	if _, err := s.jobRepo.FindByID(jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return s.responses.FindByJobID(jobID)
}

// detail 组装作业详情
func (s *jobService) detail(jobID string, tasksCreated int) (*JobDetail, error) {
	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	detail := &JobDetail{Job: job, TasksCreated: tasksCreated}
	if job.CurrentStageID != nil {
		stage, err := s.stageRepo.FindStageByID(*job.CurrentStageID)
		if err == nil {
			detail.CurrentStage = stage
		}
	}
	return detail, nil
}
