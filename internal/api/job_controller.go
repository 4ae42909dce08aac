package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/jobflow-gin/internal/service"
	"github.com/mautops/jobflow-gin/internal/utils"
)

// JobController 作业控制器
type JobController struct {
	jobService service.JobService
}

// NewJobController 创建作业控制器
func NewJobController(jobService service.JobService) *JobController {
	return &JobController{
		jobService: jobService,
	}
}

// Create 创建作业
// @Summary      创建作业
// @Description  创建作业并立即进入其工作流的初始阶段(序号 1)
// @Tags         作业管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateJobRequest true "作业信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /jobs [post]
// @Security     BearerAuth
func (c *JobController) Create(ctx *gin.Context) {
	var req service.CreateJobRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := utils.ValidateName(req.Name); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid name", err.Error())
		return
	}

	detail, err := c.jobService.Create(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, detail)
}

// Get 获取作业
// @Summary      获取作业详情
// @Description  返回作业及其当前阶段
// @Tags         作业管理
// @Accept       json
// @Produce      json
// @Param        id path string true "作业 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /jobs/{id} [get]
// @Security     BearerAuth
func (c *JobController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !validateEntityID(ctx, id) {
		return
	}

	detail, err := c.jobService.Get(id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, detail)
}

// List 列出租户的作业
// @Summary      列出租户的作业
// @Tags         作业管理
// @Accept       json
// @Produce      json
// @Param        tenant_id query string true "租户 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /jobs [get]
// @Security     BearerAuth
func (c *JobController) List(ctx *gin.Context) {
	tenantID := ctx.Query("tenant_id")
	if err := utils.ValidateTenantID(tenantID); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	jobs, err := c.jobService.ListByTenant(tenantID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, jobs)
}

// ListTasks 列出作业的任务
// @Summary      列出作业的任务
// @Tags         作业管理
// @Accept       json
// @Produce      json
// @Param        id path string true "作业 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /jobs/{id}/tasks [get]
// @Security     BearerAuth
func (c *JobController) ListTasks(ctx *gin.Context) {
	id := ctx.Param("id")
	if !validateEntityID(ctx, id) {
		return
	}

	tasks, err := c.jobService.ListTasks(id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, tasks)
}

// CompleteTask 完成作业任务
// @Summary      完成作业任务
// @Description  模板要求上传时必须携带完成产物;重复完成幂等
// @Tags         作业管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body service.CompleteTaskRequest true "完成信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /tasks/{id}/complete [post]
// @Security     BearerAuth
func (c *JobController) CompleteTask(ctx *gin.Context) {
	id := ctx.Param("id")
	if !validateEntityID(ctx, id) {
		return
	}

	var req service.CompleteTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	req.ActorID = actorFromContext(ctx, req.ActorID)

	task, err := c.jobService.CompleteTask(ctx.Request.Context(), id, &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, task)
}

// History 列出作业的流转历史
// @Summary      列出作业的流转审计历史
// @Description  只追加的审计记录,含失败诊断记录(to 阶段为空)
// @Tags         作业管理
// @Accept       json
// @Produce      json
// @Param        id path string true "作业 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /jobs/{id}/history [get]
// @Security     BearerAuth
func (c *JobController) History(ctx *gin.Context) {
	id := ctx.Param("id")
	if !validateEntityID(ctx, id) {
		return
	}

	audits, err := c.jobService.History(id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, audits)
}

// ListResponses 列出作业的当前应答
// @Summary      列出作业的当前应答
// @Description  每个问题至多一条当前应答,重复提交原地覆盖
// @Tags         作业管理
// @Accept       json
// @Produce      json
// @Param        id path string true "作业 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /jobs/{id}/responses [get]
// @Security     BearerAuth
func (c *JobController) ListResponses(ctx *gin.Context) {
	id := ctx.Param("id")
	if !validateEntityID(ctx, id) {
		return
	}

	responses, err := c.jobService.ListResponses(id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, responses)
}
