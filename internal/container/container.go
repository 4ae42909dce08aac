package container

import (
	"fmt"
	"time"

	"github.com/mautops/jobflow-gin/internal/auth"
	"github.com/mautops/jobflow-gin/internal/config"
	"github.com/mautops/jobflow-gin/internal/database"
	"github.com/mautops/jobflow-gin/internal/metrics"
	"github.com/mautops/jobflow-gin/internal/repository"
	"github.com/mautops/jobflow-gin/internal/service"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、服务、权限检查器等
type Container struct {
	db          *gorm.DB
	permission  auth.PermissionChecker
	directory   *auth.StaticDirectory
	validator   *auth.TokenValidator
	auditLogSvc service.AuditLogService
	progression service.ProgressionService
	workflow    service.WorkflowService
	jobs        service.JobService
	reports     service.ReportService
	sla         service.SLAService
	collector   *metrics.Collector
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	// 应答 upsert 依赖 (job_id, question_id) 唯一索引
	if err := database.CreateIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return NewContainerWithDB(cfg, db)
}

// NewContainerWithDB 在既有数据库连接上创建容器(测试使用 sqlite 内存库)
func NewContainerWithDB(cfg *config.Config, db *gorm.DB) (*Container, error) {
	// 提权检查器:未配置 OpenFGA store 时放行所有覆盖(本地开发)
	var permission auth.PermissionChecker
	if cfg.OpenFGA.StoreID != "" {
		checker, err := auth.NewOpenFGACheckerWithRetry(
			cfg.OpenFGA.APIURL, cfg.OpenFGA.StoreID, cfg.OpenFGA.ModelID, 3, time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenFGA checker: %w", err)
		}
		permission = checker
	} else {
		permission = auth.AllowAllChecker{}
	}

	// 用户目录:配置驱动的租户 → 特权用户映射
	directory := auth.NewStaticDirectory(cfg.Auth.Admins)

	// 令牌验证器:未配置密钥时中间件进入开发模式
	var validator *auth.TokenValidator
	if cfg.Auth.JWTSecret != "" {
		validator = auth.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}

	auditLogSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	progression := service.NewProgressionService(db, permission, directory)

	// 指标收集器:周期刷新数据库连接池与任务状态分布
	collector := metrics.NewCollector(db, 30*time.Second)
	collector.Start()

	return &Container{
		db:          db,
		permission:  permission,
		directory:   directory,
		validator:   validator,
		auditLogSvc: auditLogSvc,
		progression: progression,
		workflow:    service.NewWorkflowService(db, auditLogSvc),
		jobs:        service.NewJobService(db, progression),
		reports:     service.NewReportService(db),
		sla:         service.NewSLAService(db),
		collector:   collector,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// PermissionChecker 获取提权检查器
func (c *Container) PermissionChecker() auth.PermissionChecker {
	return c.permission
}

// Directory 获取用户目录
func (c *Container) Directory() *auth.StaticDirectory {
	return c.directory
}

// TokenValidator 获取令牌验证器,未配置时为 nil
func (c *Container) TokenValidator() *auth.TokenValidator {
	return c.validator
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditLogSvc
}

// ProgressionService 获取阶段推进服务
func (c *Container) ProgressionService() service.ProgressionService {
	return c.progression
}

// WorkflowService 获取工作流定义服务
func (c *Container) WorkflowService() service.WorkflowService {
	return c.workflow
}

// JobService 获取作业服务
func (c *Container) JobService() service.JobService {
	return c.jobs
}

// ReportService 获取报表服务
func (c *Container) ReportService() service.ReportService {
	return c.reports
}

// SLAService 获取 SLA 巡检服务
func (c *Container) SLAService() service.SLAService {
	return c.sla
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	return nil
}
