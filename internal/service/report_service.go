package service

import (
	"sort"
	"time"

	"github.com/mautops/jobflow-gin/internal/model"
	"github.com/mautops/jobflow-gin/internal/repository"
	"gorm.io/gorm"
)

// ReportService 阶段表现报表服务接口
type ReportService interface {
	StagePerformanceReport(tenantID string, from, to time.Time) ([]*StagePerformance, error)
}

// StagePerformance 单个阶段在时间范围内的聚合表现
// @Description 阶段表现聚合:进入次数、停留时长、任务完成率、转化率
type StagePerformance struct {
	StageID               string  `json:"stage_id"`
	StageName             string  `json:"stage_name"`
	EntryCount            int     `json:"entry_count"` // 进入次数
	MeanDurationSeconds   float64 `json:"mean_duration_seconds"` // 平均停留时长(已关闭的停留)
	MedianDurationSeconds float64 `json:"median_duration_seconds"` // 中位停留时长
	TaskCompletionRate    float64 `json:"task_completion_rate"` // 任务完成率
	ConversionRate        float64 `json:"conversion_rate"` // 成功流出占比
}

type reportService struct {
	db         *gorm.DB
	metricRepo repository.StageMetricRepository
	stageRepo  repository.StageRepository
}

// NewReportService 创建报表服务
func NewReportService(db *gorm.DB) ReportService {
	return &reportService{
		db:         db,
		metricRepo: repository.NewStageMetricRepository(db),
		stageRepo:  repository.NewStageRepository(db),
	}
}

// StagePerformanceReport 汇总租户在时间范围内的各阶段表现
// 时长与转化只统计已关闭的停留;仍打开的停留计入进入次数
func (s *reportService) StagePerformanceReport(tenantID string, from, to time.Time) ([]*StagePerformance, error) {
	metrics, err := s.metricRepo.FindForTenantRange(tenantID, from, to)
	if err != nil {
		return nil, err
	}

	type accumulator struct {
		entries   int
		converted int
		durations []float64
		completed int
		overdue   int
	}
	byStage := make(map[string]*accumulator)
	order := make([]string, 0)

	for _, metric := range metrics {
		acc, ok := byStage[metric.StageID]
		if !ok {
			acc = &accumulator{}
			byStage[metric.StageID] = acc
			order = append(order, metric.StageID)
		}
		acc.entries++
		if metric.Converted {
			acc.converted++
		}
		if metric.DurationSeconds != nil {
			acc.durations = append(acc.durations, float64(*metric.DurationSeconds))
		}
		acc.completed += metric.CompletedTasks
		acc.overdue += metric.OverdueTasks
	}

	report := make([]*StagePerformance, 0, len(order))
	for _, stageID := range order {
		acc := byStage[stageID]
		entry := &StagePerformance{
			StageID:    stageID,
			EntryCount: acc.entries,
		}
		if stage, err := s.stageRepo.FindStageByID(stageID); err == nil {
			entry.StageName = stage.Name
		}
		entry.MeanDurationSeconds = mean(acc.durations)
		entry.MedianDurationSeconds = median(acc.durations)
		if total := acc.completed + acc.overdue; total > 0 {
			entry.TaskCompletionRate = float64(acc.completed) / float64(total)
		}
		if acc.entries > 0 {
			entry.ConversionRate = float64(acc.converted) / float64(acc.entries)
		}
		report = append(report, entry)
	}

	// 按阶段序号呈现
	sort.SliceStable(report, func(i, j int) bool {
		return stageOrdinal(s.db, report[i].StageID) < stageOrdinal(s.db, report[j].StageID)
	})
	return report, nil
}

// mean 求均值,空集为 0
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

// median 求中位数,空集为 0
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	middle := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[middle]
	}
	return (sorted[middle-1] + sorted[middle]) / 2
}

// stageOrdinal 查询阶段序号,失败时排在末尾
func stageOrdinal(db *gorm.DB, stageID string) int {
	var stage model.StageModel
	if err := db.Select("ordinal").Where("id = ?", stageID).First(&stage).Error; err != nil {
		return int(^uint(0) >> 1)
	}
	return stage.Ordinal
}
