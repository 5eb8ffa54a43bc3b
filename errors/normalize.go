package errors

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"strings"
)

// Normalize 将数据库驱动与上下文产生的常见错误规范化为 AppError。
//
// 注意：
//   - 如果传入的 err 已经携带错误码，则原样返回；
//   - 未识别的错误保持原样，不强行包装，交由调用方决定是否 Wrap。
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	var coded interface{ Code() ErrorCode }
	if stdErrors.As(err, &coded) {
		return err
	}

	switch {
	case stdErrors.Is(err, sql.ErrNoRows):
		return WrapError(err, ErrCodeNotFound, "记录未找到")
	case stdErrors.Is(err, context.DeadlineExceeded):
		return WrapError(err, ErrCodeTimeout, "操作超时")
	case stdErrors.Is(err, context.Canceled):
		return WrapError(err, ErrCodeCanceled, "操作已取消")
	case isUniqueViolation(err):
		return WrapError(err, ErrCodeDuplicate, "唯一键冲突")
	}

	return err
}

// isUniqueViolation 以关键字识别 mysql / sqlite / postgres 的唯一约束错误
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
