package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mautops/jobflow-gin/internal/model"
)

// ValidationError 应答格式校验错误
// 在任何状态变更之前拒绝,携带出错字段供调用方修正请求
type ValidationError struct {
	Field  string
	Reason string
}

// Error 实现 error 接口
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// 是/否应答接受的令牌集合
var yesNoTokens = map[string]bool{
	"yes": true, "no": true,
	"y": true, "n": true,
	"true": true, "false": true,
	"是": true, "否": true,
}

// 日期应答接受的格式
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	time.RFC3339,
}

// ValidateResponse 按问题声明的应答类型校验应答值
// 校验通过返回 nil,否则返回 *ValidationError
func ValidateResponse(question *model.QuestionModel, value string) *ValidationError {
	trimmed := strings.TrimSpace(value)

	switch question.ResponseType {
	case model.ResponseTypeYesNo:
		if !yesNoTokens[strings.ToLower(trimmed)] {
			return &ValidationError{Field: "value", Reason: "expected a yes/no token"}
		}
	case model.ResponseTypeNumber:
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return &ValidationError{Field: "value", Reason: "expected a numeric value"}
		}
	case model.ResponseTypeDate:
		if !parseableDate(trimmed) {
			return &ValidationError{Field: "value", Reason: "expected a parseable date"}
		}
	case model.ResponseTypeText, model.ResponseTypeFile:
		if trimmed == "" {
			return &ValidationError{Field: "value", Reason: "expected a non-empty value"}
		}
	case model.ResponseTypeChoice:
		if trimmed == "" {
			return &ValidationError{Field: "value", Reason: "expected a non-empty choice"}
		}
		if !choiceAllowed(question.Options, trimmed) {
			return &ValidationError{Field: "value", Reason: "value is not one of the declared options"}
		}
	default:
		return &ValidationError{Field: "response_type", Reason: "question declares an unknown response type"}
	}

	return nil
}

// parseableDate 判断值能否按任一支持格式解析为日期
func parseableDate(value string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// choiceAllowed 判断多选一应答是否属于声明的候选项
// 问题未声明候选项时不限制
func choiceAllowed(options []byte, value string) bool {
	if len(options) == 0 {
		return true
	}
	var declared []string
	if err := json.Unmarshal(options, &declared); err != nil {
		return true
	}
	if len(declared) == 0 {
		return true
	}
	normalized := NormalizeValue(value)
	for _, option := range declared {
		if NormalizeValue(option) == normalized {
			return true
		}
	}
	return false
}
