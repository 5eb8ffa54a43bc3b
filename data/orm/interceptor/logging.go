// Package interceptor 提供 orm.DataBase 的常用拦截器
//
// 日志与慢操作告警、租户行过滤、写操作审计（NATS）、行数缓存（本地或 Redis）。
package interceptor

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"relmap/data/orm"
	"relmap/logging"
)

// Logging 记录每个操作的耗时与结果，超过 slow 的操作以 Warn 级别输出
type Logging struct {
	logger logging.Logger
	slow   time.Duration
	now    func() time.Time

	started sync.Map // orm.Operation -> time.Time
}

// NewLogging 创建日志拦截器；slow 为 0 时不做慢操作告警
func NewLogging(logger logging.Logger, slow time.Duration) *Logging {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Logging{
		logger: logger.WithFields(logging.Component("orm.interceptor.logging")),
		slow:   slow,
		now:    time.Now,
	}
}

func (l *Logging) Before(ctx context.Context, op orm.Operation) orm.Decision {
	l.started.Store(op, l.now())
	return orm.Proceed
}

func (l *Logging) After(ctx context.Context, op orm.Operation, result any, err error) {
	var elapsed time.Duration
	if v, ok := l.started.LoadAndDelete(op); ok {
		elapsed = l.now().Sub(v.(time.Time))
	}
	fields := []logging.Field{
		logging.String("op", op.Kind().String()),
		logging.String("type", op.Target().String()),
		logging.Duration("elapsed", elapsed),
	}
	if n, ok := result.(int64); ok && op.Kind().IsWrite() {
		fields = append(fields, logging.String("affected", humanize.Comma(n)))
	}
	switch {
	case err != nil:
		l.logger.Error(ctx, "orm operation failed", append(fields, logging.Error(err))...)
	case l.slow > 0 && elapsed >= l.slow:
		l.logger.Warn(ctx, "slow orm operation",
			append(fields, logging.String("since", humanize.RelTime(l.now().Add(-elapsed), l.now(), "ago", "from now")))...)
	default:
		l.logger.Info(ctx, "orm operation", fields...)
	}
}
