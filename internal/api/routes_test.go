package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/jobflow-gin/internal/auth"
	"github.com/mautops/jobflow-gin/internal/database"
	"github.com/mautops/jobflow-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestRouter 搭建开发模式(无 JWT 密钥)的完整路由
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.CreateIndexes(db))

	progression := service.NewProgressionService(db, auth.AllowAllChecker{}, nil)
	controllers := Controllers{
		Workflow:    NewWorkflowController(service.NewWorkflowService(db, nil)),
		Job:         NewJobController(service.NewJobService(db, progression)),
		Progression: NewProgressionController(progression),
		Report:      NewReportController(service.NewReportService(db), service.NewSLAService(db)),
	}
	return SetupRoutes(db, nil, []string{"*"}, controllers)
}

// doJSON 发起带 actor 头的 JSON 请求并解析统一响应
func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "user-1")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	var parsed map[string]interface{}
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &parsed))
	}
	return recorder, parsed
}

// TestMiddlewareHeaders 测试安全头、跨源头与预检请求
func TestMiddlewareHeaders(t *testing.T) {
	router := newTestRouter(t)

	recorder, _ := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", recorder.Header().Get("X-Frame-Options"))
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))

	// 预检请求在 CORS 层短路,开发模式 actor 头在允许列表中
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	req.Header.Set("Origin", "https://console.example.com")
	preflight := httptest.NewRecorder()
	router.ServeHTTP(preflight, req)

	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Contains(t, preflight.Header().Get("Access-Control-Allow-Headers"), "X-Actor-ID")
	assert.Contains(t, preflight.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

// TestHealthEndpoint 测试健康检查
func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder, parsed := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "healthy", parsed["status"])
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))
}

// TestSubmitResponseFlow 测试从定义到推进的完整链路
func TestSubmitResponseFlow(t *testing.T) {
	router := newTestRouter(t)

	// 定义两个阶段
	recorder, parsed := doJSON(t, router, http.MethodPost, "/api/v1/workflow/stages", map[string]interface{}{
		"name": "site survey", "ordinal": 1, "status": "planning",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	stage1 := parsed["data"].(map[string]interface{})["ID"].(string)

	recorder, parsed = doJSON(t, router, http.MethodPost, "/api/v1/workflow/stages", map[string]interface{}{
		"name": "execution", "ordinal": 2, "status": "active",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	stage2 := parsed["data"].(map[string]interface{})["ID"].(string)

	// 定义流转边与问题
	recorder, _ = doJSON(t, router, http.MethodPost, "/api/v1/workflow/transitions", map[string]interface{}{
		"from_stage_id": stage1, "to_stage_id": stage2, "trigger_value": "Yes",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder, parsed = doJSON(t, router, http.MethodPost, "/api/v1/workflow/questions", map[string]interface{}{
		"stage_id": stage1, "prompt": "survey passed?", "response_type": "yes_no", "ordinal": 1,
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	questionID := parsed["data"].(map[string]interface{})["ID"].(string)

	// 创建作业,进入初始阶段
	recorder, parsed = doJSON(t, router, http.MethodPost, "/api/v1/jobs", map[string]interface{}{
		"tenant_id": "tnt-1", "name": "warehouse extension", "owner_id": "owner-1",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	detail := parsed["data"].(map[string]interface{})
	jobID := detail["job"].(map[string]interface{})["ID"].(string)
	assert.Equal(t, stage1, detail["current_stage"].(map[string]interface{})["ID"])

	// 提交命中流转条件的应答
	recorder, parsed = doJSON(t, router, http.MethodPost, "/api/v1/jobs/"+jobID+"/responses", map[string]interface{}{
		"question_id": questionID, "value": "yes",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	result := parsed["data"].(map[string]interface{})
	assert.Equal(t, "transitioned", result["outcome"])
	assert.Equal(t, stage2, result["to_stage_id"])

	// 审计历史两条:初始进入 + 应答流转
	recorder, parsed = doJSON(t, router, http.MethodGet, "/api/v1/jobs/"+jobID+"/history", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, parsed["data"].([]interface{}), 2)
}

// TestSubmitResponse_BadRequests 测试提交面的请求校验
func TestSubmitResponse_BadRequests(t *testing.T) {
	router := newTestRouter(t)

	// 缺失必填字段
	recorder, _ := doJSON(t, router, http.MethodPost, "/api/v1/jobs/job-1/responses", map[string]interface{}{
		"value": "yes",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// 作业不存在
	recorder, _ = doJSON(t, router, http.MethodPost, "/api/v1/jobs/job-missing/responses", map[string]interface{}{
		"question_id": "qst-1", "value": "yes",
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// 开发模式下无 actor 头也无 actor_id
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/job-1/responses",
		bytes.NewReader([]byte(`{"question_id":"qst-1","value":"yes"}`)))
	req.Header.Set("Content-Type", "application/json")
	recorder2 := httptest.NewRecorder()
	router.ServeHTTP(recorder2, req)
	assert.Equal(t, http.StatusBadRequest, recorder2.Code)
}

// TestReportEndpoints 测试报表路由参数校验
func TestReportEndpoints(t *testing.T) {
	router := newTestRouter(t)

	recorder, _ := doJSON(t, router, http.MethodGet, "/api/v1/reports/stage-performance", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder, parsed := doJSON(t, router, http.MethodGet, "/api/v1/reports/stage-performance?tenant_id=tnt-1", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotNil(t, parsed)

	recorder, _ = doJSON(t, router, http.MethodGet, "/api/v1/reports/sla-violations", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
