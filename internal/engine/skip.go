package engine

import (
	"encoding/json"
	"fmt"

	"github.com/mautops/jobflow-gin/internal/model"
)

// 跳过条件种类
const (
	SkipKindJobCategory   = "job_category"   // 按作业类别跳过
	SkipKindPriorResponse = "prior_response" // 按先前某问题的应答跳过
)

// SkipCondition 问题跳过条件
// 命中时本次提交不做流转求值,应答本身仍会被记录
type SkipCondition struct {
	Kind       string `json:"kind"`
	QuestionID string `json:"question_id,omitempty"` // prior_response: 被引用的问题
	Equals     string `json:"equals"`                // 匹配值(大小写与首尾空白不敏感)
}

// ParseSkipCondition 解析问题上的跳过条件 JSON
// 条件缺失返回 (nil, nil)
func ParseSkipCondition(raw []byte) (*SkipCondition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var cond SkipCondition
	if err := json.Unmarshal(raw, &cond); err != nil {
		return nil, fmt.Errorf("invalid skip condition: %w", err)
	}
	if cond.Kind == "" {
		return nil, nil
	}
	switch cond.Kind {
	case SkipKindJobCategory:
	case SkipKindPriorResponse:
		if cond.QuestionID == "" {
			return nil, fmt.Errorf("skip condition of kind %s requires a question_id", cond.Kind)
		}
	default:
		return nil, fmt.Errorf("unknown skip condition kind %q", cond.Kind)
	}
	return &cond, nil
}

// PriorResponseLookup 查询作业对某问题的当前应答
// 不存在时返回空串
type PriorResponseLookup func(jobID, questionID string) (string, error)

// ShouldSkip 判断本次提交是否跳过流转求值
// 条件缺失恒为 false
func ShouldSkip(cond *SkipCondition, job *model.JobModel, lookup PriorResponseLookup) (bool, error) {
	if cond == nil {
		return false, nil
	}
	switch cond.Kind {
	case SkipKindJobCategory:
		return NormalizeValue(job.Category) == NormalizeValue(cond.Equals), nil
	case SkipKindPriorResponse:
		prior, err := lookup(job.ID, cond.QuestionID)
		if err != nil {
			return false, err
		}
		if prior == "" {
			return false, nil
		}
		return NormalizeValue(prior) == NormalizeValue(cond.Equals), nil
	}
	return false, nil
}
