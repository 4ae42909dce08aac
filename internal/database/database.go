package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/jobflow-gin/internal/config"
	"github.com/mautops/jobflow-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 从配置中读取连接池参数，如果没有配置则使用默认值
	var poolConfig *PoolConfig
	if cfg.MaxIdleConns > 0 || cfg.MaxOpenConns > 0 {
		poolConfig = &PoolConfig{
			MaxIdleConns:    cfg.MaxIdleConns,
			MaxOpenConns:    cfg.MaxOpenConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		}
		if poolConfig.MaxIdleConns == 0 {
			poolConfig.MaxIdleConns = 10
		}
		if poolConfig.MaxOpenConns == 0 {
			poolConfig.MaxOpenConns = 100
		}
		if poolConfig.ConnMaxLifetime == 0 {
			poolConfig.ConnMaxLifetime = 3600
		}
		if poolConfig.ConnMaxIdleTime == 0 {
			poolConfig.ConnMaxIdleTime = 600
		}
	} else {
		poolConfig = GetPoolConfig()
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试，等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb，需要手动创建表
	// GORM SQLite dialector 的名称可能是 "sqlite" 或 "sqlite3"
	if dialector == "sqlite" || dialector == "sqlite3" {
		// 手动创建 SQLite 表（使用 TEXT 替代 jsonb）
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		// PostgreSQL 等其他数据库使用 AutoMigrate
		if err := db.AutoMigrate(
			&model.StageModel{},
			&model.TransitionModel{},
			&model.QuestionModel{},
			&model.ResponseModel{},
			&model.TaskTemplateModel{},
			&model.JobModel{},
			&model.JobTaskModel{},
			&model.TransitionAuditModel{},
			&model.StageMetricModel{},
			&model.AuditLogModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表（使用 TEXT 替代 jsonb）
func createSQLiteTables(db *gorm.DB) error {
	// 创建 stages 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stages (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64),
			name VARCHAR(255) NOT NULL,
			ordinal INTEGER NOT NULL,
			status VARCHAR(32) NOT NULL,
			kind VARCHAR(32) NOT NULL DEFAULT 'standard',
			min_duration_hours INTEGER DEFAULT 0,
			max_duration_hours INTEGER DEFAULT 0,
			approval_required BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create stages table: %w", err)
	}

	// 创建 stage_transitions 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stage_transitions (
			id VARCHAR(64) PRIMARY KEY,
			from_stage_id VARCHAR(64) NOT NULL,
			to_stage_id VARCHAR(64) NOT NULL,
			trigger_value VARCHAR(255),
			condition VARCHAR(255),
			automatic BOOLEAN NOT NULL DEFAULT 1,
			require_override BOOLEAN NOT NULL DEFAULT 0,
			ordinal INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create stage_transitions table: %w", err)
	}

	// 创建 stage_questions 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stage_questions (
			id VARCHAR(64) PRIMARY KEY,
			stage_id VARCHAR(64) NOT NULL,
			prompt TEXT NOT NULL,
			response_type VARCHAR(32) NOT NULL,
			ordinal INTEGER NOT NULL,
			required BOOLEAN NOT NULL DEFAULT 1,
			skip_condition TEXT,
			options TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create stage_questions table: %w", err)
	}

	// 创建 question_responses 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS question_responses (
			id VARCHAR(64) PRIMARY KEY,
			job_id VARCHAR(64) NOT NULL,
			question_id VARCHAR(64) NOT NULL,
			value TEXT NOT NULL,
			metadata TEXT,
			actor_id VARCHAR(64) NOT NULL,
			source VARCHAR(32) NOT NULL DEFAULT 'api',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create question_responses table: %w", err)
	}

	// 创建 task_templates 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS task_templates (
			id VARCHAR(64) PRIMARY KEY,
			stage_id VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			checklist TEXT,
			require_upload BOOLEAN NOT NULL DEFAULT 0,
			due_offset_hours INTEGER NOT NULL DEFAULT 24,
			priority VARCHAR(16) NOT NULL DEFAULT 'medium',
			assignee_rule VARCHAR(32) NOT NULL DEFAULT 'creator',
			sla_hours INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create task_templates table: %w", err)
	}

	// 创建 jobs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(64),
			status VARCHAR(32) NOT NULL,
			current_stage_id VARCHAR(64),
			stage_entered_at DATETIME,
			owner_id VARCHAR(64) NOT NULL,
			lead_id VARCHAR(64),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	// 创建 job_tasks 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS job_tasks (
			id VARCHAR(64) PRIMARY KEY,
			job_id VARCHAR(64) NOT NULL,
			template_id VARCHAR(64) NOT NULL,
			stage_id VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'open',
			assignee_id VARCHAR(64),
			priority VARCHAR(16) NOT NULL DEFAULT 'medium',
			checklist TEXT,
			due_at DATETIME NOT NULL,
			sla_hours INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME,
			completed_by VARCHAR(64),
			artifacts TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create job_tasks table: %w", err)
	}

	// 创建 stage_transition_audits 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stage_transition_audits (
			id VARCHAR(64) PRIMARY KEY,
			job_id VARCHAR(64) NOT NULL,
			from_stage_id VARCHAR(64),
			to_stage_id VARCHAR(64),
			from_status VARCHAR(32),
			to_status VARCHAR(32),
			trigger_source VARCHAR(32) NOT NULL,
			actor_id VARCHAR(64) NOT NULL,
			detail TEXT,
			question_id VARCHAR(64),
			response_id VARCHAR(64),
			duration_seconds BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create stage_transition_audits table: %w", err)
	}

	// 创建 stage_metrics 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stage_metrics (
			id VARCHAR(64) PRIMARY KEY,
			job_id VARCHAR(64) NOT NULL,
			stage_id VARCHAR(64) NOT NULL,
			entered_at DATETIME NOT NULL,
			exited_at DATETIME,
			duration_seconds BIGINT,
			completed_tasks INTEGER NOT NULL DEFAULT 0,
			overdue_tasks INTEGER NOT NULL DEFAULT 0,
			converted BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create stage_metrics table: %w", err)
	}

	// 创建 audit_logs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			action VARCHAR(64) NOT NULL,
			resource_type VARCHAR(32) NOT NULL,
			resource_id VARCHAR(64) NOT NULL,
			request_id VARCHAR(64),
			ip VARCHAR(45),
			user_agent TEXT,
			details TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// stages 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_stages_tenant_id ON stages(tenant_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_stages_tenant_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_stages_tenant_ordinal ON stages(tenant_id, ordinal)").Error; err != nil {
		return fmt.Errorf("failed to create idx_stages_tenant_ordinal: %w", err)
	}

	// stage_transitions 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_transitions_from_stage ON stage_transitions(from_stage_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_transitions_from_stage: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_transitions_to_stage ON stage_transitions(to_stage_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_transitions_to_stage: %w", err)
	}

	// stage_questions 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_questions_stage_id ON stage_questions(stage_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_questions_stage_id: %w", err)
	}

	// question_responses 表索引
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_responses_job_question ON question_responses(job_id, question_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_responses_job_question: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_responses_actor_id ON question_responses(actor_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_responses_actor_id: %w", err)
	}

	// task_templates 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_templates_stage_active ON task_templates(stage_id, active)").Error; err != nil {
		return fmt.Errorf("failed to create idx_templates_stage_active: %w", err)
	}

	// jobs 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_jobs_tenant_id ON jobs(tenant_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_jobs_tenant_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_jobs_current_stage ON jobs(current_stage_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_jobs_current_stage: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_jobs_status: %w", err)
	}

	// job_tasks 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_job_tasks_job_id ON job_tasks(job_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_job_tasks_job_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_job_tasks_status_due ON job_tasks(status, due_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_job_tasks_status_due: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_job_tasks_assignee ON job_tasks(assignee_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_job_tasks_assignee: %w", err)
	}

	// stage_transition_audits 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audits_job_id ON stage_transition_audits(job_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audits_job_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audits_created_at ON stage_transition_audits(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audits_created_at: %w", err)
	}

	// stage_metrics 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_metrics_job_id ON stage_metrics(job_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_metrics_job_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_metrics_stage_entered ON stage_metrics(stage_id, entered_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_metrics_stage_entered: %w", err)
	}

	// audit_logs 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_resource: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_logs(user_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_user_id: %w", err)
	}

	// PostgreSQL 特定的 GIN 索引
	if dialector == "postgres" {
		// JSONB 字段的 GIN 索引
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_questions_skip_gin ON stage_questions USING GIN (skip_condition)").Error; err != nil {
			return fmt.Errorf("failed to create idx_questions_skip_gin: %w", err)
		}
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audits_detail_gin ON stage_transition_audits USING GIN (detail)").Error; err != nil {
			return fmt.Errorf("failed to create idx_audits_detail_gin: %w", err)
		}
	}

	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return false
	}

	return true
}
