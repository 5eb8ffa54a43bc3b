package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWrap 测试基本错误包装
func TestWrap(t *testing.T) {
	ctx := context.Background()
	originalErr := errors.New("原始错误")

	wrapped := Wrap(ctx, originalErr, ErrCodeDatabase, "包装消息")

	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, originalErr)
	assert.Equal(t, ErrCodeDatabase, GetErrorCode(wrapped))
	assert.Contains(t, wrapped.Error(), "包装消息")
}

// TestWrap_NilError 测试包装nil错误
func TestWrap_NilError(t *testing.T) {
	assert.NoError(t, Wrap(context.Background(), nil, ErrCodeInternal, "消息"))
	assert.NoError(t, WrapWithLog(context.Background(), nil, ErrCodeInternal, "消息"))
	assert.NoError(t, WrapDatabaseError(context.Background(), nil, "操作"))
}

// TestWrapDatabaseError 测试数据库错误包装
func TestWrapDatabaseError(t *testing.T) {
	ctx := context.Background()

	t.Run("未识别错误归为数据库错误", func(t *testing.T) {
		err := WrapDatabaseError(ctx, errors.New("connection refused"), "查询用户")
		assert.Equal(t, ErrCodeDatabase, GetErrorCode(err))
	})

	t.Run("无记录归为未找到", func(t *testing.T) {
		err := WrapDatabaseError(ctx, sql.ErrNoRows, "查询用户")
		assert.True(t, IsNotFound(err))
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("唯一约束冲突", func(t *testing.T) {
		err := WrapDatabaseError(ctx, errors.New("UNIQUE constraint failed: person.id"), "插入")
		assert.Equal(t, ErrCodeDuplicate, GetErrorCode(err))
	})
}

// TestNormalize 测试错误规范化
func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "超时", err: context.DeadlineExceeded, want: ErrCodeTimeout},
		{name: "取消", err: fmt.Errorf("exec: %w", context.Canceled), want: ErrCodeCanceled},
		{name: "无记录", err: sql.ErrNoRows, want: ErrCodeNotFound},
		{name: "mysql重复", err: errors.New("Error 1062: Duplicate entry '1' for key 'PRIMARY'"), want: ErrCodeDuplicate},
		{name: "已有错误码", err: NewMappingError("type %s", "X"), want: ErrCodeMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCode(Normalize(tt.err)))
		})
	}

	plain := errors.New("其他")
	assert.Same(t, plain, Normalize(plain))
	assert.Nil(t, Normalize(nil))
}

// TestErrorCodes 测试错误码判定
func TestErrorCodes(t *testing.T) {
	err := NewMappingError("类型 %s 已经映射", "Person")
	assert.True(t, IsMapping(err))
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "Person")
	assert.ErrorIs(t, err, ErrMapping)

	assert.True(t, errors.Is(NewError(ErrCodeNotFound, "x"), ErrNotFound))
	assert.True(t, IsDuplicate(Normalize(errors.New("UNIQUE constraint failed: t.id"))))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(errors.New("plain")))
	assert.Empty(t, GetErrorCode(nil))
}

// TestWithDetail 测试详情附加
func TestWithDetail(t *testing.T) {
	base := NewError(ErrCodeMapping, "x")
	withType := base.WithDetail("type", "Person")
	assert.Equal(t, "Person", withType.Details()["type"])
	assert.Empty(t, base.Details(), "原错误不受影响")
	assert.NotEmpty(t, withType.Stack())

	withType.Details()["type"] = "changed"
	assert.Equal(t, "Person", withType.Details()["type"], "Details 返回副本")

	err := NewInvalidInput("Price", "invalid value %q", "cheap")
	assert.True(t, IsInvalidInput(err))
	assert.Equal(t, `[INVALID_INPUT] invalid value "cheap" field=Price`, err.Error())

	wrapped := WrapError(errors.New("boom"), ErrCodeCache, "read").WithDetail("b", 2).WithDetail("a", 1)
	assert.Equal(t, "[CACHE_ERROR] read a=1 b=2: boom", wrapped.Error())
}

// BenchmarkWrap 基准测试：基本包装
func BenchmarkWrap(b *testing.B) {
	ctx := context.Background()
	err := errors.New("测试错误")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Wrap(ctx, err, ErrCodeInternal, "基准测试")
	}
}
