package engine

import (
	"github.com/mautops/jobflow-gin/internal/model"
)

// UserDirectory 外部身份协作方的最小查询面
// 本引擎不拥有租户用户数据,仅在解析任务指派规则时查询
type UserDirectory interface {
	// EarliestAdmin 返回租户内最早创建的特权用户 ID,无法解析时返回空串
	EarliestAdmin(tenantID string) (string, error)
}

// NoopDirectory 空目录实现,所有查询都解析失败
// 指派规则随之回退到触发人
type NoopDirectory struct{}

// EarliestAdmin 实现 UserDirectory
func (NoopDirectory) EarliestAdmin(string) (string, error) {
	return "", nil
}

// ResolveAssignee 按模板指派规则解析任务指派人
// 规则: creator=触发人; lead=作业负责人,未设置回退触发人;
// admin=租户最早特权用户,解析失败回退触发人
func ResolveAssignee(rule string, job *model.JobModel, actorID string, directory UserDirectory) string {
	switch rule {
	case model.AssigneeRuleLead:
		if job.LeadID != "" {
			return job.LeadID
		}
	case model.AssigneeRuleAdmin:
		if directory != nil {
			admin, err := directory.EarliestAdmin(job.TenantID)
			if err == nil && admin != "" {
				return admin
			}
		}
	}
	return actorID
}
