package orm

import (
	"context"
)

// Decision 前置拦截的结果：继续执行、跳过并以给定值作为结果，或以错误拒绝执行
type Decision struct {
	skip  bool
	value any
	err   error
}

// Proceed 继续执行
var Proceed = Decision{}

// SkipWith 跳过执行，value 作为操作结果
func SkipWith(value any) Decision {
	return Decision{skip: true, value: value}
}

// Skipped 是否跳过以及替代结果
func (d Decision) Skipped() (any, bool) { return d.value, d.skip }

// Fail 拒绝执行，err 作为操作的错误返回给调用方
func Fail(err error) Decision {
	return Decision{err: err}
}

// Err 拒绝执行的原因，继续或跳过时为 nil
func (d Decision) Err() error { return d.err }

// Interceptor 物理操作的前置/后置拦截器
//
// Before 按注册顺序执行，第一个跳过或拒绝的决定生效；After 总是执行，
// 收到实际结果（或跳过时的替代结果、拒绝时的错误）。
//
// 结果类型：写操作为 int64 受影响行数，Select 为 *Rows，聚合为标量值。
type Interceptor interface {
	Before(ctx context.Context, op Operation) Decision
	After(ctx context.Context, op Operation, result any, err error)
}

// BeforeFunc 前置拦截函数
type BeforeFunc func(ctx context.Context, op Operation) Decision

// AfterFunc 后置拦截函数
type AfterFunc func(ctx context.Context, op Operation, result any, err error)

type funcInterceptor struct {
	before BeforeFunc
	after  AfterFunc
}

// Intercept 以函数构造拦截器，任一参数可为 nil
func Intercept(before BeforeFunc, after AfterFunc) Interceptor {
	return funcInterceptor{before: before, after: after}
}

func (f funcInterceptor) Before(ctx context.Context, op Operation) Decision {
	if f.before == nil {
		return Proceed
	}
	return f.before(ctx, op)
}

func (f funcInterceptor) After(ctx context.Context, op Operation, result any, err error) {
	if f.after != nil {
		f.after(ctx, op, result, err)
	}
}

type interceptorChain []Interceptor

func (c interceptorChain) before(ctx context.Context, op Operation) Decision {
	for _, i := range c {
		if d := i.Before(ctx, op); d.skip || d.err != nil {
			return d
		}
	}
	return Proceed
}

func (c interceptorChain) after(ctx context.Context, op Operation, result any, err error) {
	for _, i := range c {
		i.After(ctx, op, result, err)
	}
}
