// Package errors 定义 relmap 的错误码与带码错误 AppError
//
// 映射与校验错误在任何 I/O 之前产生，带有 ErrCodeMapping / ErrCodeValidation；
// 后端错误原样返回，需要时经 Normalize 归类。
package errors

import (
	stdErrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorCode 错误代码类型
type ErrorCode string

func (c ErrorCode) String() string { return string(c) }

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeCanceled     ErrorCode = "CANCELED"

	// 映射：重复映射、未映射、外键歧义、非法成员路径
	ErrCodeMapping ErrorCode = "MAPPING_ERROR"
	// 校验：实例不满足成员规则或校验器
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// 唯一约束冲突
	ErrCodeDuplicate ErrorCode = "DUPLICATE_ERROR"

	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeCache    ErrorCode = "CACHE_ERROR"
	ErrCodeConfig   ErrorCode = "CONFIG_ERROR"
)

// IError 带错误码的错误
type IError interface {
	error
	Code() ErrorCode
	Message() string
	Cause() error
	Details() map[string]any
	Stack() string
	// WithDetail 返回附加了一项详情的副本
	WithDetail(key string, value any) IError
}

// AppError IError 的实现
type AppError struct {
	code    ErrorCode
	message string
	cause   error
	details map[string]any
	stack   string
}

// NewError 创建新错误
func NewError(code ErrorCode, message string) IError {
	return newAppError(code, message, nil)
}

// Errorf 以格式化消息创建错误
func Errorf(code ErrorCode, format string, args ...any) IError {
	return newAppError(code, fmt.Sprintf(format, args...), nil)
}

// WrapError 以错误码包装 err；err 为 nil 时返回 nil
func WrapError(err error, code ErrorCode, message string) IError {
	if err == nil {
		return nil
	}
	return newAppError(code, message, err)
}

func newAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{code: code, message: message, cause: cause, stack: captureStack()}
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString("[" + string(e.code) + "] " + e.message)
	for _, k := range sortedKeys(e.details) {
		fmt.Fprintf(&b, " %s=%v", k, e.details[k])
	}
	if e.cause != nil {
		b.WriteString(": " + e.cause.Error())
	}
	return b.String()
}

func (e *AppError) Code() ErrorCode { return e.code }

func (e *AppError) Message() string { return e.message }

func (e *AppError) Cause() error { return e.cause }

// Details 详情的副本
func (e *AppError) Details() map[string]any {
	return copyMap(e.details)
}

func (e *AppError) Stack() string { return e.stack }

// Is 同错误码视为同一类错误，否则沿 cause 继续比较
func (e *AppError) Is(target error) bool {
	if target == nil {
		return false
	}
	if appErr, ok := target.(*AppError); ok {
		return e.code == appErr.code
	}
	if e.cause != nil {
		return stdErrors.Is(e.cause, target)
	}
	return false
}

func (e *AppError) Unwrap() error { return e.cause }

func (e *AppError) WithDetail(key string, value any) IError {
	details := copyMap(e.details)
	details[key] = value
	return &AppError{code: e.code, message: e.message, cause: e.cause, details: details, stack: e.stack}
}

// 按错误码比较的哨兵，用于 errors.Is
var (
	ErrNotFound     = NewError(ErrCodeNotFound, "记录未找到")
	ErrInvalidInput = NewError(ErrCodeInvalidInput, "无效的输入参数")
	ErrMapping      = NewError(ErrCodeMapping, "映射错误")
	ErrDuplicate    = NewError(ErrCodeDuplicate, "数据重复")
)

func IsNotFound(err error) bool { return IsErrorCode(err, ErrCodeNotFound) }

func IsInvalidInput(err error) bool { return IsErrorCode(err, ErrCodeInvalidInput) }

func IsValidation(err error) bool { return IsErrorCode(err, ErrCodeValidation) }

func IsMapping(err error) bool { return IsErrorCode(err, ErrCodeMapping) }

func IsDuplicate(err error) bool { return IsErrorCode(err, ErrCodeDuplicate) }

// IsErrorCode 错误链上第一个带码错误的码是否为 code
func IsErrorCode(err error, code ErrorCode) bool {
	return err != nil && GetErrorCode(err) == code
}

// GetErrorCode 获取错误代码，无法识别时返回 ErrCodeInternal
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded interface{ Code() ErrorCode }
	if stdErrors.As(err, &coded) {
		return coded.Code()
	}
	return ErrCodeInternal
}

// captureStack 跳过构造函数自身的调用栈
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(4, pcs[:])

	var builder strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&builder, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return builder.String()
}

func copyMap(original map[string]any) map[string]any {
	copied := make(map[string]any, len(original)+1)
	for k, v := range original {
		copied[k] = v
	}
	return copied
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
