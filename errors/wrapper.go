package errors

import (
	"context"
	"fmt"
	"runtime"

	"relmap/logging"
)

func callerLocation(skip int) string {
	_, file, line, _ := runtime.Caller(skip + 1)
	return fmt.Sprintf("%s:%d", file, line)
}

// Wrap 包装错误并附加错误码，调用位置以 Debug 级别记录
func Wrap(ctx context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	logging.GetLogger().Debug(ctx, "wrap error: "+msg,
		logging.String("code", code.String()),
		logging.String("location", callerLocation(1)))
	return WrapError(err, code, msg)
}

// WrapWithLog 包装错误并以 Warn 级别记录
func WrapWithLog(ctx context.Context, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}
	all := append([]logging.Field{
		logging.Error(err),
		logging.String("code", code.String()),
		logging.String("location", callerLocation(1)),
	}, fields...)
	logging.GetLogger().Warn(ctx, msg, all...)
	return WrapError(err, code, msg)
}

// WrapDatabaseError 在调用边界包装后端错误
//
// 已带码或可经 Normalize 识别的错误保留其码；其余归为 ErrCodeDatabase 并记录警告。
func WrapDatabaseError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	normalized := Normalize(err)
	if code := GetErrorCode(normalized); code != ErrCodeInternal {
		return WrapError(normalized, code, operation)
	}
	return WrapWithLog(ctx, err, ErrCodeDatabase, "database operation failed: "+operation,
		logging.String("operation", operation))
}

// NewMappingError 创建映射错误
func NewMappingError(format string, args ...any) error {
	return Errorf(ErrCodeMapping, format, args...)
}

// NewInvalidInput 创建输入错误，field 记入详情
func NewInvalidInput(field string, format string, args ...any) error {
	return Errorf(ErrCodeInvalidInput, format, args...).WithDetail("field", field)
}
