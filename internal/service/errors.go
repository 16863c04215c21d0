package service

import (
	"errors"
	"fmt"
)

// 典型失败类型,所有核心操作以 result-or-typed-failure 形式返回,
// API 层通过 errors.Is / errors.As 映射到状态码
var (
	// ErrNotFound 目标草稿/许可证/填报记录不存在或不属于解析出的所有者范围
	ErrNotFound = errors.New("not found")
	// ErrForbidden 操作者既不是所有者也不是被授权的提升角色
	ErrForbidden = errors.New("forbidden")
	// ErrConflict 用户自填编号冲突,或试图离开 CLOSED 终态
	ErrConflict = errors.New("conflict")
)

// ValidationError 创建时缺失必填字段或树形状非法
// 在任何写入之前返回,不提交部分状态
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// newValidationError 创建校验错误
func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError 判断错误是否为校验失败
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// notFoundErr 包装一个带上下文的 NotFound 错误
func notFoundErr(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}

// forbiddenErr 包装一个带上下文的 Forbidden 错误
func forbiddenErr(what, id string) error {
	return fmt.Errorf("%w: not the owner of %s %s", ErrForbidden, what, id)
}

// conflictErr 包装一个带上下文的 Conflict 错误
func conflictErr(message string) error {
	return fmt.Errorf("%w: %s", ErrConflict, message)
}
