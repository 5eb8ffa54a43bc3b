package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFormatValue 测试值格式化
func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "字符串", value: "test", want: "test"},
		{name: "错误", value: errors.New("error message"), want: "error message"},
		{name: "整数", value: 123, want: "123"},
		{name: "布尔值", value: true, want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.value))
		})
	}
}

// TestStdLogger_Levels 测试各级别输出与过滤
func TestStdLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger("orm", WithWriter(&buf), WithLevel(DebugLevel))
	ctx := context.Background()

	logger.Debug(ctx, "debug message", String("key", "value"))
	logger.Info(ctx, "info message", Int("count", 123))
	logger.Warn(ctx, "warn message", Bool("critical", true))
	logger.Error(ctx, "error message", Error(errors.New("test error")))

	output := buf.String()
	for _, expected := range []string{
		"[DEBUG] orm debug message key=value",
		"[INFO] orm info message count=123",
		"[WARN] orm warn message critical=true",
		"[ERROR] orm error message error=test error",
	} {
		assert.Contains(t, output, expected)
	}
}

// TestStdLogger_MinLevel 测试低于最低级别的日志被丢弃
func TestStdLogger_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger("", WithWriter(&buf), WithLevel(WarnLevel))
	ctx := context.Background()

	logger.Debug(ctx, "hidden-debug")
	logger.Info(ctx, "hidden-info")
	logger.Warn(ctx, "shown-warn")

	output := buf.String()
	assert.NotContains(t, output, "hidden-debug")
	assert.NotContains(t, output, "hidden-info")
	assert.Contains(t, output, "shown-warn")
}

// TestStdLogger_WithFields 测试WithFields不改变原Logger
func TestStdLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger("test", WithWriter(&buf))
	child := logger.WithFields(Component("orm"), String("table", "person"))

	child.Info(context.Background(), "insert", Duration("elapsed", 0))

	output := buf.String()
	assert.Contains(t, output, "component=orm")
	assert.Contains(t, output, "table=person")
	assert.Contains(t, output, "elapsed=0s")
	assert.Empty(t, logger.fields)
	assert.Len(t, child.(*StdLogger).fields, 2)
}

// TestParseLevel 测试级别解析
func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel("DEBUG")
	assert.True(t, ok)
	assert.Equal(t, DebugLevel, level)

	level, ok = ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, WarnLevel, level)

	level, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, InfoLevel, level)

	assert.Equal(t, "ERROR", ErrorLevel.String())
}

// TestNoopLogger 测试NoopLogger
func TestNoopLogger(t *testing.T) {
	logger := NewNoopLogger()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		logger.Debug(ctx, "test")
		logger.Info(ctx, "test")
		logger.Warn(ctx, "test")
		logger.Error(ctx, "test")
	})
	assert.Same(t, logger, logger.WithFields(String("key", "value")))
}

// TestGlobalLogger 测试全局Logger
func TestGlobalLogger(t *testing.T) {
	originalLogger := GetLogger()
	defer SetLogger(originalLogger)

	testLogger := NewNoopLogger()
	SetLogger(testLogger)
	assert.Same(t, testLogger, GetLogger())

	SetLogger(nil)
	assert.IsType(t, &NoopLogger{}, GetLogger())
}
