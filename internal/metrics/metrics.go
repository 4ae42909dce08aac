package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 问题回答提交数
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_submissions_total",
			Help: "Total number of question response submissions",
		},
		[]string{"outcome"}, // transitioned, no_transition, recorded
	)

	// 阶段转换数
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_transitions_total",
			Help: "Total number of stage transitions applied",
		},
		[]string{"source"}, // question_response, admin_override, system
	)

	// 阶段进入时生成的任务数
	tasksGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasks_generated_total",
			Help: "Total number of tasks generated on stage entry",
		},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 任务状态分布
	tasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "job_tasks_by_status",
			Help: "Number of job tasks by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(tasksGeneratedTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(tasksByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordSubmission 记录一次回答提交及其结局
func RecordSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordTransition 记录一次阶段转换
func RecordTransition(source string) {
	transitionsTotal.WithLabelValues(source).Inc()
}

// RecordTasksGenerated 记录阶段进入时生成的任务数
func RecordTasksGenerated(count int) {
	if count > 0 {
		tasksGeneratedTotal.Add(float64(count))
	}
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateTasksByStatus 更新任务状态分布指标
func UpdateTasksByStatus(status string, count float64) {
	tasksByStatus.WithLabelValues(status).Set(count)
}
