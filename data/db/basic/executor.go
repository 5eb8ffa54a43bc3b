package basic

import (
	"context"
	"fmt"

	core "relmap/data/db"
	"relmap/data/db/dialect"
)

// Executor 在 core.IDatabase 之上实现 core.IExecutor
//
// 批量命令按语句顺序逐条执行；读取器每个结果集对应一条语句。
type Executor struct {
	db      core.IDatabase
	dialect dialect.Dialect
	owned   []func() error
}

// NewExecutor 包装数据库会话，方言从会话推断，Close 不关闭会话
func NewExecutor(db core.IDatabase) *Executor {
	return &Executor{db: db, dialect: dialect.FromDatabase(db)}
}

// Open 打开数据库并独占一条连接，Close 时一并释放
func Open(ctx context.Context, config core.DBConfig) (*Executor, error) {
	pool, err := New(config)
	if err != nil {
		return nil, err
	}
	conn, err := pool.Conn(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	e := NewExecutor(conn)
	e.owned = []func() error{conn.Close, pool.Close}
	return e, nil
}

// Dialect 当前方言
func (e *Executor) Dialect() dialect.Dialect { return e.dialect }

// Database 底层会话
func (e *Executor) Database() core.IDatabase { return e.db }

func (e *Executor) Execute(ctx context.Context, cmd *core.Command) (int64, error) {
	var total int64
	for _, st := range cmd.Statements {
		res, err := e.db.Exec(ctx, st.Text, st.Args...)
		if err != nil {
			return total, err
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

func (e *Executor) GetScalar(ctx context.Context, cmd *core.Command) (any, error) {
	reader, err := e.GetDataReader(ctx, cmd)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	for {
		if reader.Next() {
			cols := reader.Columns()
			if len(cols) == 0 {
				return nil, nil
			}
			return reader.Record()[cols[0]], nil
		}
		if err := reader.Err(); err != nil {
			return nil, err
		}
		if !reader.NextResult() {
			return nil, reader.Err()
		}
	}
}

func (e *Executor) GetDataReader(ctx context.Context, cmd *core.Command) (core.IDataReader, error) {
	if cmd == nil || cmd.Len() == 0 {
		return nil, fmt.Errorf("basic: empty command")
	}
	r := &reader{ctx: ctx, db: e.db, statements: cmd.Statements, index: -1}
	if !r.open(0) {
		return nil, r.err
	}
	return r, nil
}

func (e *Executor) ExistsTable(ctx context.Context, table string) (bool, error) {
	q, args := e.dialect.ExistsTableQuery(table)
	return e.ExistsData(ctx, core.NewCommand(q, args...))
}

func (e *Executor) ExistsConstraint(ctx context.Context, table, constraint string) (bool, error) {
	q, args := e.dialect.ExistsConstraintQuery(table, constraint)
	return e.ExistsData(ctx, core.NewCommand(q, args...))
}

func (e *Executor) ExistsData(ctx context.Context, cmd *core.Command) (bool, error) {
	reader, err := e.GetDataReader(ctx, cmd)
	if err != nil {
		return false, err
	}
	defer reader.Close()
	if reader.Next() {
		return true, nil
	}
	return false, reader.Err()
}

// Close 释放 Open 创建的连接与连接池
func (e *Executor) Close() error {
	var first error
	for _, closeFn := range e.owned {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	e.owned = nil
	return first
}

// reader 惰性读取器：NextResult 时才执行下一条语句
type reader struct {
	ctx        context.Context
	db         core.IDatabase
	statements []core.Statement
	index      int

	rows    core.IRows
	columns []string
	record  core.Record
	err     error
}

func (r *reader) open(i int) bool {
	r.closeRows()
	r.index = i
	st := r.statements[i]
	rows, err := r.db.Query(r.ctx, st.Text, st.Args...)
	if err != nil {
		r.err = err
		return false
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		r.err = err
		return false
	}
	r.rows = rows
	r.columns = cols
	return true
}

func (r *reader) Next() bool {
	r.record = nil
	if r.rows == nil || r.err != nil {
		return false
	}
	if !r.rows.Next() {
		r.err = r.rows.Err()
		return false
	}
	values := make([]any, len(r.columns))
	ptrs := make([]any, len(r.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = err
		return false
	}
	rec := make(core.Record, len(r.columns))
	for i, c := range r.columns {
		// 驱动可能复用字节缓冲
		if b, ok := values[i].([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
		rec[c] = values[i]
	}
	r.record = rec
	return true
}

func (r *reader) Record() core.Record { return r.record }

func (r *reader) Columns() []string { return r.columns }

func (r *reader) NextResult() bool {
	if r.err != nil || r.index+1 >= len(r.statements) {
		r.closeRows()
		return false
	}
	return r.open(r.index + 1)
}

func (r *reader) Err() error { return r.err }

func (r *reader) Close() error {
	r.index = len(r.statements)
	return r.closeRows()
}

func (r *reader) closeRows() error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	r.columns = nil
	return err
}
