package engine

import (
	"sort"

	"github.com/mautops/jobflow-gin/internal/model"
)

// Evaluate 对当前阶段的候选流转边求值
// 匹配规则: 触发文本(规范化后)相等,或条件表达式为真;
// 多条命中时优先自动边,仍有歧义按声明序号取第一条;
// 无命中返回 nil,属正常非错误结果,作业停留在当前阶段。
// RequireOverride 边只能经管理员覆盖路径触发,这里始终排除。
func Evaluate(candidates []*model.TransitionModel, value string) *model.TransitionModel {
	matched := make([]*model.TransitionModel, 0, len(candidates))

	for _, transition := range candidates {
		if transition.RequireOverride {
			continue
		}
		if transitionMatches(transition, value) {
			matched = append(matched, transition)
		}
	}

	if len(matched) == 0 {
		return nil
	}

	// 自动边优先,其后按声明序号保证确定性
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Automatic != matched[j].Automatic {
			return matched[i].Automatic
		}
		return matched[i].Ordinal < matched[j].Ordinal
	})

	return matched[0]
}

// transitionMatches 判断单条流转边是否命中应答值
func transitionMatches(transition *model.TransitionModel, value string) bool {
	if transition.TriggerValue != "" &&
		NormalizeValue(transition.TriggerValue) == NormalizeValue(value) {
		return true
	}
	if transition.Condition != "" {
		cond, err := LoadCondition(transition.Condition)
		if err != nil {
			return false
		}
		return cond.Matches(value)
	}
	return false
}
