package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/jobflow-gin/internal/auth"
	"gorm.io/gorm"
)

// Controllers 路由依赖的控制器集合
type Controllers struct {
	Workflow    *WorkflowController
	Job         *JobController
	Progression *ProgressionController
	Report      *ReportController
}

// SetupRoutes 配置路由
func SetupRoutes(db *gorm.DB, validator *auth.TokenValidator, allowedOrigins []string, controllers Controllers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(allowedOrigins))
	router.Use(RateLimitMiddleware(100, 200))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(db)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// API v1 路由组,携带认证中间件
	v1 := router.Group("/api/v1")
	v1.Use(auth.Middleware(validator))
	{
		// 工作流定义路由
		workflow := v1.Group("/workflow")
		{
			workflow.POST("/stages", controllers.Workflow.CreateStage)
			workflow.GET("/stages", controllers.Workflow.ListStages)
			workflow.GET("/stages/:id/questions", controllers.Workflow.ListQuestions)
			workflow.GET("/stages/:id/task-templates", controllers.Workflow.ListTaskTemplates)
			workflow.POST("/transitions", controllers.Workflow.CreateTransition)
			workflow.DELETE("/transitions/:id", controllers.Workflow.DeleteTransition)
			workflow.POST("/questions", controllers.Workflow.CreateQuestion)
			workflow.POST("/task-templates", controllers.Workflow.CreateTaskTemplate)
		}

		// 作业与推进路由
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", controllers.Job.Create)
			jobs.GET("", controllers.Job.List)
			jobs.GET("/:id", controllers.Job.Get)
			jobs.GET("/:id/tasks", controllers.Job.ListTasks)
			jobs.GET("/:id/history", controllers.Job.History)
			jobs.GET("/:id/responses", controllers.Job.ListResponses)
			jobs.POST("/:id/responses", controllers.Progression.SubmitResponse)
			jobs.POST("/:id/override", controllers.Progression.OverrideStage)
		}

		// 任务路由
		tasks := v1.Group("/tasks")
		{
			tasks.POST("/:id/complete", controllers.Job.CompleteTask)
		}

		// 报表路由
		reports := v1.Group("/reports")
		{
			reports.GET("/stage-performance", controllers.Report.StagePerformance)
			reports.GET("/sla-violations", controllers.Report.SLAViolations)
		}
	}

	return router
}
