package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/jobflow-gin/internal/engine"
	"github.com/mautops/jobflow-gin/internal/service"
	"github.com/mautops/jobflow-gin/internal/utils"
)

// ProgressionController 阶段推进控制器
// 应答提交与管理员覆盖两条写路径
type ProgressionController struct {
	progressionService service.ProgressionService
}

// NewProgressionController 创建阶段推进控制器
func NewProgressionController(progressionService service.ProgressionService) *ProgressionController {
	return &ProgressionController{
		progressionService: progressionService,
	}
}

// respondServiceError 统一映射服务层错误到 HTTP 响应
func respondServiceError(ctx *gin.Context, err error) {
	var verr *engine.ValidationError
	var gerr *service.GraphIntegrityError
	var ierr *service.InternalError

	switch {
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrStageNotFound),
		errors.Is(err, service.ErrTaskNotFound):
		Error(ctx, http.StatusNotFound, "resource not found", err.Error())
	case errors.Is(err, service.ErrPermissionDenied):
		Error(ctx, http.StatusForbidden, "permission denied", err.Error())
	case errors.Is(err, service.ErrStageScope):
		Error(ctx, http.StatusUnprocessableEntity, "stage out of scope", err.Error())
	case errors.As(err, &verr):
		Error(ctx, http.StatusUnprocessableEntity, "validation failed", verr.Error())
	case errors.As(err, &gerr):
		Error(ctx, http.StatusConflict, "graph integrity violation", gerr.Reason)
	case errors.As(err, &ierr):
		// 根因已随引用码写入日志,对外只暴露引用码
		Error(ctx, http.StatusInternalServerError, "internal error", ierr.Error())
	default:
		Error(ctx, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// validateEntityID 验证路径中的实体 ID 并返回错误响应(如果无效)
func validateEntityID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateEntityID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid ID", err.Error())
		return false
	}
	return true
}

// actorFromContext 应答人缺省取认证上下文注入的 user_id
func actorFromContext(ctx *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return ctx.GetString("user_id")
}

// SubmitResponse 提交应答
// @Summary      提交问题应答
// @Description  对某作业的某阶段问题提交应答,命中流转条件时原子推进阶段
// @Tags         阶段推进
// @Accept       json
// @Produce      json
// @Param        id path string true "作业 ID"
// @Param        request body service.SubmitResponseRequest true "应答信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /jobs/{id}/responses [post]
// @Security     BearerAuth
func (c *ProgressionController) SubmitResponse(ctx *gin.Context) {
	jobID := ctx.Param("id")
	if !validateEntityID(ctx, jobID) {
		return
	}

	var req service.SubmitResponseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	req.JobID = jobID
	req.ActorID = actorFromContext(ctx, req.ActorID)
	if req.ActorID == "" {
		Error(ctx, http.StatusBadRequest, "invalid request", "actor_id is required")
		return
	}

	result, err := c.progressionService.SubmitResponse(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, result)
}

// OverrideStage 管理员覆盖阶段
// @Summary      管理员覆盖作业阶段
// @Description  无条件移动作业到任意阶段,需要提权并强制给出原因
// @Tags         阶段推进
// @Accept       json
// @Produce      json
// @Param        id path string true "作业 ID"
// @Param        request body service.OverrideStageRequest true "覆盖信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /jobs/{id}/override [post]
// @Security     BearerAuth
func (c *ProgressionController) OverrideStage(ctx *gin.Context) {
	jobID := ctx.Param("id")
	if !validateEntityID(ctx, jobID) {
		return
	}

	var req service.OverrideStageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	req.JobID = jobID
	req.ActorID = actorFromContext(ctx, req.ActorID)
	if req.ActorID == "" {
		Error(ctx, http.StatusBadRequest, "invalid request", "actor_id is required")
		return
	}
	// 覆盖原因进入审计载荷,先清理再落库
	reason, err := utils.TrimAndValidate(req.Reason, 1024)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid reason", err.Error())
		return
	}
	req.Reason = reason

	result, err := c.progressionService.OverrideStage(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, result)
}
