package service

import (
	"time"

	"github.com/mautops/jobflow-gin/internal/model"
	"github.com/mautops/jobflow-gin/internal/repository"
	"gorm.io/gorm"
)

// SLA 违约严重级别枚举
const (
	SLASeverityLow      = "low"      // 超时 4 小时以内
	SLASeverityMedium   = "medium"   // 超时 4-24 小时
	SLASeverityHigh     = "high"     // 超时 24-72 小时
	SLASeverityCritical = "critical" // 超时 72 小时以上
)

// SLAService SLA 巡检服务接口
// 拉取式只读查询,本子系统没有自治的巡检进程
type SLAService interface {
	CheckViolations(tenantID string) ([]*SLAViolation, error)
}

// SLAViolation 一条 SLA 违约记录
// @Description 逾期未完成的作业任务及其严重级别
type SLAViolation struct {
	TaskID       string    `json:"task_id"`
	JobID        string    `json:"job_id"`
	Title        string    `json:"title"`
	AssigneeID   string    `json:"assignee_id"`
	DueAt        time.Time `json:"due_at"`
	SLAHours     int       `json:"sla_hours"` // 模板声明的 SLA
	HoursOverdue float64   `json:"hours_overdue"` // 超出 SLA 的小时数
	Severity     string    `json:"severity"`
}

type slaService struct {
	taskRepo repository.JobTaskRepository
	now      func() time.Time
}

// NewSLAService 创建 SLA 巡检服务
func NewSLAService(db *gorm.DB) SLAService {
	return &slaService{
		taskRepo: repository.NewJobTaskRepository(db),
		now:      time.Now,
	}
}

// CheckViolations 巡检逾期任务
// tenantID 为空时跨租户巡检;严重级别按超出模板 SLA 的小时数分桶
func (s *slaService) CheckViolations(tenantID string) ([]*SLAViolation, error) {
	now := s.now()
	tasks, err := s.taskRepo.FindOverdue(tenantID, now)
	if err != nil {
		return nil, err
	}

	violations := make([]*SLAViolation, 0, len(tasks))
	for _, task := range tasks {
		deadline := slaDeadline(task)
		overdue := now.Sub(deadline).Hours()
		if overdue <= 0 {
			// 已过截止时间但仍在 SLA 宽限内
			continue
		}
		violations = append(violations, &SLAViolation{
			TaskID:       task.ID,
			JobID:        task.JobID,
			Title:        task.Title,
			AssigneeID:   task.AssigneeID,
			DueAt:        task.DueAt,
			SLAHours:     task.SLAHours,
			HoursOverdue: overdue,
			Severity:     severityFor(overdue),
		})
	}
	return violations, nil
}

// slaDeadline 任务的 SLA 截止时刻
// 模板未声明 SLA 时以截止时间为准
func slaDeadline(task *model.JobTaskModel) time.Time {
	if task.SLAHours > 0 {
		return task.CreatedAt.Add(time.Duration(task.SLAHours) * time.Hour)
	}
	return task.DueAt
}

// severityFor 按超时小时数分桶
func severityFor(hoursOverdue float64) string {
	switch {
	case hoursOverdue < 4:
		return SLASeverityLow
	case hoursOverdue < 24:
		return SLASeverityMedium
	case hoursOverdue < 72:
		return SLASeverityHigh
	default:
		return SLASeverityCritical
	}
}
