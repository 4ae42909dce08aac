package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/jobflow-gin/internal/service"
)

// ReportController 报表控制器
// 阶段表现聚合与 SLA 巡检,均为拉取式只读查询
type ReportController struct {
	reportService service.ReportService
	slaService    service.SLAService
}

// NewReportController 创建报表控制器
func NewReportController(reportService service.ReportService, slaService service.SLAService) *ReportController {
	return &ReportController{
		reportService: reportService,
		slaService:    slaService,
	}
}

// StagePerformance 阶段表现报表
// @Summary      阶段表现报表
// @Description  按阶段聚合进入次数、停留时长(均值/中位数)、任务完成率与转化率
// @Tags         报表
// @Accept       json
// @Produce      json
// @Param        tenant_id query string true "租户 ID"
// @Param        from query string false "起始时间(RFC3339),缺省为 30 天前"
// @Param        to query string false "结束时间(RFC3339),缺省为当前时刻"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /reports/stage-performance [get]
// @Security     BearerAuth
func (c *ReportController) StagePerformance(ctx *gin.Context) {
	tenantID := ctx.Query("tenant_id")
	if tenantID == "" {
		Error(ctx, http.StatusBadRequest, "invalid request", "tenant_id is required")
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now
	if raw := ctx.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "invalid request", "from must be RFC3339")
			return
		}
		from = parsed
	}
	if raw := ctx.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "invalid request", "to must be RFC3339")
			return
		}
		to = parsed
	}

	report, err := c.reportService.StagePerformanceReport(tenantID, from, to)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, report)
}

// SLAViolations SLA 巡检
// @Summary      SLA 违约巡检
// @Description  列出逾期未完成的任务,按超时小时数分桶为 low/medium/high/critical
// @Tags         报表
// @Accept       json
// @Produce      json
// @Param        tenant_id query string false "租户 ID,留空跨租户巡检"
// @Success      200  {object}  Response
// @Failure      500  {object}  ErrorResponse
// @Router       /reports/sla-violations [get]
// @Security     BearerAuth
func (c *ReportController) SLAViolations(ctx *gin.Context) {
	violations, err := c.slaService.CheckViolations(ctx.Query("tenant_id"))
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, violations)
}
