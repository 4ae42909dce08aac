package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/jobflow-gin/internal/service"
	"github.com/mautops/jobflow-gin/internal/utils"
)

// WorkflowController 工作流定义控制器
// 阶段、流转边、问题与任务模板的定义面
type WorkflowController struct {
	workflowService service.WorkflowService
}

// NewWorkflowController 创建工作流定义控制器
func NewWorkflowController(workflowService service.WorkflowService) *WorkflowController {
	return &WorkflowController{
		workflowService: workflowService,
	}
}

// CreateStage 创建阶段
// @Summary      创建工作流阶段
// @Description  在租户作用域(或全局默认)下创建阶段,序号在作用域内唯一
// @Tags         工作流定义
// @Accept       json
// @Produce      json
// @Param        request body service.CreateStageRequest true "阶段信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflow/stages [post]
// @Security     BearerAuth
func (c *WorkflowController) CreateStage(ctx *gin.Context) {
	var req service.CreateStageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := utils.ValidateName(req.Name); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid name", err.Error())
		return
	}

	stage, err := c.workflowService.CreateStage(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, stage)
}

// ListStages 列出阶段
// @Summary      列出租户生效的阶段集
// @Description  租户有自有阶段时返回自有阶段,否则返回全局默认阶段
// @Tags         工作流定义
// @Accept       json
// @Produce      json
// @Param        tenant_id query string false "租户 ID,留空查询全局默认"
// @Success      200  {object}  Response
// @Failure      500  {object}  ErrorResponse
// @Router       /workflow/stages [get]
// @Security     BearerAuth
func (c *WorkflowController) ListStages(ctx *gin.Context) {
	stages, err := c.workflowService.ListStages(ctx.Query("tenant_id"))
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, stages)
}

// CreateTransition 创建流转边
// @Summary      创建阶段流转边
// @Description  自环与仅经自动边可达的环在此拒绝,永不进入存储
// @Tags         工作流定义
// @Accept       json
// @Produce      json
// @Param        request body service.CreateTransitionRequest true "流转边信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflow/transitions [post]
// @Security     BearerAuth
func (c *WorkflowController) CreateTransition(ctx *gin.Context) {
	var req service.CreateTransitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	transition, err := c.workflowService.CreateTransition(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, transition)
}

// DeleteTransition 删除流转边
// @Summary      删除阶段流转边
// @Tags         工作流定义
// @Accept       json
// @Produce      json
// @Param        id path string true "流转边 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflow/transitions/{id} [delete]
// @Security     BearerAuth
func (c *WorkflowController) DeleteTransition(ctx *gin.Context) {
	id := ctx.Param("id")
	if !validateEntityID(ctx, id) {
		return
	}

	if err := c.workflowService.DeleteTransition(ctx.Request.Context(), id); err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// CreateQuestion 创建问题
// @Summary      创建阶段问题
// @Description  序号在阶段内唯一,跳过条件必须可解析
// @Tags         工作流定义
// @Accept       json
// @Produce      json
// @Param        request body service.CreateQuestionRequest true "问题信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflow/questions [post]
// @Security     BearerAuth
func (c *WorkflowController) CreateQuestion(ctx *gin.Context) {
	var req service.CreateQuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	question, err := c.workflowService.CreateQuestion(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, question)
}

// ListQuestions 列出阶段的问题
// @Summary      列出阶段的问题
// @Tags         工作流定义
// @Accept       json
// @Produce      json
// @Param        id path string true "阶段 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflow/stages/{id}/questions [get]
// @Security     BearerAuth
func (c *WorkflowController) ListQuestions(ctx *gin.Context) {
	stageID := ctx.Param("id")
	if !validateEntityID(ctx, stageID) {
		return
	}

	questions, err := c.workflowService.ListQuestions(stageID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, questions)
}

// CreateTaskTemplate 创建任务模板
// @Summary      创建任务模板
// @Description  进入所属阶段时按模板实例化作业任务
// @Tags         工作流定义
// @Accept       json
// @Produce      json
// @Param        request body service.CreateTaskTemplateRequest true "任务模板信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflow/task-templates [post]
// @Security     BearerAuth
func (c *WorkflowController) CreateTaskTemplate(ctx *gin.Context) {
	var req service.CreateTaskTemplateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	template, err := c.workflowService.CreateTaskTemplate(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, template)
}

// ListTaskTemplates 列出阶段的任务模板
// @Summary      列出阶段的任务模板
// @Tags         工作流定义
// @Accept       json
// @Produce      json
// @Param        id path string true "阶段 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflow/stages/{id}/task-templates [get]
// @Security     BearerAuth
func (c *WorkflowController) ListTaskTemplates(ctx *gin.Context) {
	stageID := ctx.Param("id")
	if !validateEntityID(ctx, stageID) {
		return
	}

	templates, err := c.workflowService.ListTaskTemplates(stageID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, templates)
}
