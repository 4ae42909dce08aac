package engine

// SubmitOutcome 一次应答提交的结构化结果枚举
type SubmitOutcome string

const (
	// OutcomeRecorded 应答已记录(仅记录,无进一步动作)
	OutcomeRecorded SubmitOutcome = "recorded"
	// OutcomeSkipped 命中跳过条件,应答已记录但未做流转求值
	OutcomeSkipped SubmitOutcome = "skipped"
	// OutcomeNoTransition 无流转边命中,作业停留在当前阶段
	OutcomeNoTransition SubmitOutcome = "no_transition"
	// OutcomeTransitioned 流转成功
	OutcomeTransitioned SubmitOutcome = "transitioned"
)

// SubmitResult 应答提交的结果载荷
type SubmitResult struct {
	Outcome      SubmitOutcome `json:"outcome"`
	ResponseID   string        `json:"response_id"`
	FromStageID  string        `json:"from_stage_id,omitempty"`
	ToStageID    string        `json:"to_stage_id,omitempty"`
	FromStatus   string        `json:"from_status,omitempty"`
	ToStatus     string        `json:"to_status,omitempty"`
	TasksCreated int           `json:"tasks_created"`
	AuditID      string        `json:"audit_id,omitempty"`
}
