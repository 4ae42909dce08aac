package engine

import (
	"testing"

	"github.com/mautops/jobflow-gin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseSkipCondition 测试跳过条件解析
func TestParseSkipCondition(t *testing.T) {
	cond, err := ParseSkipCondition([]byte(`{"kind":"job_category","equals":"maintenance"}`))
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Equal(t, SkipKindJobCategory, cond.Kind)
	assert.Equal(t, "maintenance", cond.Equals)

	// 条件缺失返回 nil
	cond, err = ParseSkipCondition(nil)
	require.NoError(t, err)
	assert.Nil(t, cond)

	cond, err = ParseSkipCondition([]byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, cond)

	// prior_response 必须引用问题
	_, err = ParseSkipCondition([]byte(`{"kind":"prior_response","equals":"no"}`))
	assert.Error(t, err)

	_, err = ParseSkipCondition([]byte(`{"kind":"astrology","equals":"x"}`))
	assert.Error(t, err)

	_, err = ParseSkipCondition([]byte(`not json`))
	assert.Error(t, err)
}

// TestShouldSkip_JobCategory 测试按作业类别跳过
func TestShouldSkip_JobCategory(t *testing.T) {
	cond := &SkipCondition{Kind: SkipKindJobCategory, Equals: "Maintenance"}

	job := &model.JobModel{ID: "job-1", Category: "maintenance"}
	skip, err := ShouldSkip(cond, job, nil)
	require.NoError(t, err)
	assert.True(t, skip)

	job.Category = "construction"
	skip, err = ShouldSkip(cond, job, nil)
	require.NoError(t, err)
	assert.False(t, skip)
}

// TestShouldSkip_PriorResponse 测试按先前应答跳过
func TestShouldSkip_PriorResponse(t *testing.T) {
	cond := &SkipCondition{Kind: SkipKindPriorResponse, QuestionID: "qst-1", Equals: "No"}
	job := &model.JobModel{ID: "job-1"}

	lookup := func(jobID, questionID string) (string, error) {
		assert.Equal(t, "job-1", jobID)
		assert.Equal(t, "qst-1", questionID)
		return "  no  ", nil
	}
	skip, err := ShouldSkip(cond, job, lookup)
	require.NoError(t, err)
	assert.True(t, skip)

	// 先前应答缺失时不跳过
	empty := func(string, string) (string, error) { return "", nil }
	skip, err = ShouldSkip(cond, job, empty)
	require.NoError(t, err)
	assert.False(t, skip)
}

// TestShouldSkip_NilCondition 测试条件缺失恒不跳过
func TestShouldSkip_NilCondition(t *testing.T) {
	skip, err := ShouldSkip(nil, &model.JobModel{}, nil)
	require.NoError(t, err)
	assert.False(t, skip)
}

// TestResolveAssignee 测试任务指派规则解析
func TestResolveAssignee(t *testing.T) {
	job := &model.JobModel{ID: "job-1", TenantID: "tnt-1", LeadID: "lead-1"}

	assert.Equal(t, "actor-1", ResolveAssignee(model.AssigneeRuleCreator, job, "actor-1", NoopDirectory{}))
	assert.Equal(t, "lead-1", ResolveAssignee(model.AssigneeRuleLead, job, "actor-1", NoopDirectory{}))

	// lead 未设置时回退到触发人
	noLead := &model.JobModel{ID: "job-2", TenantID: "tnt-1"}
	assert.Equal(t, "actor-1", ResolveAssignee(model.AssigneeRuleLead, noLead, "actor-1", NoopDirectory{}))

	// admin 解析失败时回退到触发人
	assert.Equal(t, "actor-1", ResolveAssignee(model.AssigneeRuleAdmin, job, "actor-1", NoopDirectory{}))

	directory := stubDirectory{admin: "admin-1"}
	assert.Equal(t, "admin-1", ResolveAssignee(model.AssigneeRuleAdmin, job, "actor-1", directory))
}

type stubDirectory struct {
	admin string
}

func (d stubDirectory) EarliestAdmin(string) (string, error) {
	return d.admin, nil
}
