package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ConditionKind 触发条件种类
type ConditionKind int

const (
	// ConditionExactMatch 精确文本匹配(大小写与首尾空白不敏感)
	ConditionExactMatch ConditionKind = iota
	// ConditionThreshold 数值阈值比较
	ConditionThreshold
)

// 支持的比较运算符,按前缀长度降序排列保证 ">=" 先于 ">" 被识别
var thresholdOperators = []string{">=", "<=", ">", "<", "="}

// TriggerCondition 解析后的触发条件
// 加载时解析一次,提交时只做求值,避免每次调用重复解析字符串
type TriggerCondition struct {
	Kind      ConditionKind
	Text      string  // ConditionExactMatch: 规范化后的匹配文本
	Operator  string  // ConditionThreshold: 比较运算符
	Threshold float64 // ConditionThreshold: 阈值
}

// ParseCondition 解析条件表达式
// 支持 ">"、">="、"<"、"<="、"=" 跟数值字面量;
// 其余形式回退为大小写不敏感的字符串相等
func ParseCondition(expr string) (*TriggerCondition, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, fmt.Errorf("condition expression is empty")
	}

	for _, op := range thresholdOperators {
		if !strings.HasPrefix(trimmed, op) {
			continue
		}
		literal := strings.TrimSpace(strings.TrimPrefix(trimmed, op))
		threshold, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold literal %q: %w", literal, err)
		}
		return &TriggerCondition{
			Kind:      ConditionThreshold,
			Operator:  op,
			Threshold: threshold,
		}, nil
	}

	return &TriggerCondition{
		Kind: ConditionExactMatch,
		Text: NormalizeValue(trimmed),
	}, nil
}

// conditionCache 已解析条件的进程内缓存
// 条件表达式在定义期已验证可解析;解析结果不可变,可跨提交共享
var conditionCache sync.Map

// LoadCondition 返回表达式的解析结果,同一表达式只解析一次
// 提交路径统一走这里,ParseCondition 留给定义期校验
func LoadCondition(expr string) (*TriggerCondition, error) {
	if cached, ok := conditionCache.Load(expr); ok {
		return cached.(*TriggerCondition), nil
	}
	cond, err := ParseCondition(expr)
	if err != nil {
		return nil, err
	}
	conditionCache.Store(expr, cond)
	return cond, nil
}

// Matches 判断应答值是否满足条件
func (c *TriggerCondition) Matches(value string) bool {
	switch c.Kind {
	case ConditionThreshold:
		number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false
		}
		switch c.Operator {
		case ">":
			return number > c.Threshold
		case ">=":
			return number >= c.Threshold
		case "<":
			return number < c.Threshold
		case "<=":
			return number <= c.Threshold
		case "=":
			return number == c.Threshold
		}
		return false
	case ConditionExactMatch:
		return NormalizeValue(value) == c.Text
	}
	return false
}

// NormalizeValue 规范化应答值用于匹配:去掉首尾空白并统一小写
func NormalizeValue(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
