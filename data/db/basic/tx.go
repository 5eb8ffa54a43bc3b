package basic

import (
	"context"
	"database/sql"

	core "relmap/data/db"
	"relmap/errors"
)

var errNestedTx = errors.NewError(errors.ErrCodeDatabase, "basic.Tx: nested transactions are not supported")

// Tx 事务实现，委托给 *sql.Tx，同时实现 core.IDatabase 以便交给执行器使用
type Tx struct {
	session
	ping func(ctx context.Context) error
	tx   *sql.Tx
}

// Begin 不支持嵌套事务，事务边界由调用方协调
func (t *Tx) Begin(ctx context.Context) (core.ITransaction, error) { return nil, errNestedTx }

func (t *Tx) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.ITransaction, error) {
	return nil, errNestedTx
}

func (t *Tx) Ping(ctx context.Context) error { return t.ping(ctx) }

// Close 事务由 Commit/Rollback 结束，Close 为空操作
func (t *Tx) Close() error { return nil }

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }
