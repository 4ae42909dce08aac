package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseCondition_Threshold 测试阈值条件解析
func TestParseCondition_Threshold(t *testing.T) {
	cond, err := ParseCondition(">=90")
	require.NoError(t, err)
	assert.Equal(t, ConditionThreshold, cond.Kind)
	assert.Equal(t, ">=", cond.Operator)
	assert.Equal(t, 90.0, cond.Threshold)

	// ">=" 必须先于 ">" 被识别
	cond, err = ParseCondition("> 5.5")
	require.NoError(t, err)
	assert.Equal(t, ">", cond.Operator)
	assert.Equal(t, 5.5, cond.Threshold)

	cond, err = ParseCondition("<=0")
	require.NoError(t, err)
	assert.Equal(t, "<=", cond.Operator)

	cond, err = ParseCondition("=42")
	require.NoError(t, err)
	assert.Equal(t, "=", cond.Operator)
}

// TestParseCondition_ExactMatch 测试文本条件解析
func TestParseCondition_ExactMatch(t *testing.T) {
	cond, err := ParseCondition("  Approved  ")
	require.NoError(t, err)
	assert.Equal(t, ConditionExactMatch, cond.Kind)
	assert.Equal(t, "approved", cond.Text)
}

// TestParseCondition_Invalid 测试非法条件
func TestParseCondition_Invalid(t *testing.T) {
	_, err := ParseCondition("")
	assert.Error(t, err)

	_, err = ParseCondition("   ")
	assert.Error(t, err)

	// 运算符后面跟非数值字面量
	_, err = ParseCondition(">=abc")
	assert.Error(t, err)
}

// TestTriggerCondition_Matches 测试条件求值
func TestTriggerCondition_Matches(t *testing.T) {
	cond, err := ParseCondition(">=90")
	require.NoError(t, err)

	assert.True(t, cond.Matches("90"))
	assert.True(t, cond.Matches("92"))
	assert.True(t, cond.Matches(" 95.5 "))
	assert.False(t, cond.Matches("85"))
	// 非数值应答对阈值条件恒不命中
	assert.False(t, cond.Matches("ninety"))

	exact, err := ParseCondition("Yes")
	require.NoError(t, err)
	assert.True(t, exact.Matches("yes"))
	assert.True(t, exact.Matches("  YES  "))
	assert.False(t, exact.Matches("no"))
}

// TestLoadCondition_Caches 测试同一表达式只解析一次、跨调用复用解析结果
func TestLoadCondition_Caches(t *testing.T) {
	first, err := LoadCondition(">=90")
	require.NoError(t, err)
	second, err := LoadCondition(">=90")
	require.NoError(t, err)
	assert.Same(t, first, second)

	// 非法表达式每次都报错
	_, err = LoadCondition(">=abc")
	assert.Error(t, err)
	_, err = LoadCondition(">=abc")
	assert.Error(t, err)
}

// TestNormalizeValue 测试应答值规范化
func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "yes", NormalizeValue("  Yes  "))
	assert.Equal(t, "yes", NormalizeValue("YES"))
	assert.Equal(t, "", NormalizeValue("   "))
}
