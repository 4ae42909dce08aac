package service

import (
	"errors"
	"fmt"
)

// 客户端可恢复错误:携带足够细节供调用方修正请求
var (
	ErrJobNotFound      = errors.New("job not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrStageNotFound    = errors.New("stage not found")
	ErrTaskNotFound     = errors.New("job task not found")
	ErrPermissionDenied = errors.New("permission denied: stage override requires elevated permission")
	ErrStageScope       = errors.New("target stage does not belong to the job's workflow")
)

// GraphIntegrityError 流转图完整性错误
// 在定义期拒绝,提交期永不出现
type GraphIntegrityError struct {
	Reason string
}

// Error 实现 error 接口
func (e *GraphIntegrityError) Error() string {
	return "graph integrity violation: " + e.Reason
}

// InternalError 内部错误
// 以不透明的引用码上报,不暴露内部状态;根因已随引用码写入日志
type InternalError struct {
	Ref string
}

// Error 实现 error 接口
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error (ref %s)", e.Ref)
}
