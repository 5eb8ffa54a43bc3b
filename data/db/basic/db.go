// Package basic 基于 database/sql 实现 data/db 中的数据库与执行器契约
package basic

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	core "relmap/data/db"
	"relmap/data/db/dialect"
)

// querier *sql.DB、*sql.Conn、*sql.Tx 的公共能力
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// session 在任意 querier 上按方言改写占位符后执行
type session struct {
	q       querier
	dialect dialect.Dialect
}

func (s session) Query(ctx context.Context, query string, args ...any) (core.IRows, error) {
	rows, err := s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (s session) QueryRow(ctx context.Context, query string, args ...any) core.IRow {
	return &Row{row: s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...)}
}

func (s session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

// GetDialectName 实现 core.IDialectNameProvider
func (s session) GetDialectName() string {
	return string(s.dialect.Name())
}

// DB 连接池实现
type DB struct {
	session
	db *sql.DB
}

// New 根据 core.DBConfig 打开数据库并做一次可用性检查
//
// 调用方必须确保所配置的 Driver 已通过空导入注册（例如 `_ "modernc.org/sqlite"`）。
func New(config core.DBConfig) (*DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = "sqlite"
	}
	db, err := sql.Open(driver, BuildDSN(config))
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetime) * time.Second)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleTime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return Wrap(db, driver), nil
}

// Wrap 包装已打开的 *sql.DB
func Wrap(db *sql.DB, driver string) *DB {
	return &DB{session: session{q: db, dialect: dialect.New(driver)}, db: db}
}

func (d *DB) Begin(ctx context.Context) (core.ITransaction, error) {
	return d.BeginTx(ctx, nil)
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.ITransaction, error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{session: session{q: tx, dialect: d.dialect}, ping: d.db.PingContext, tx: tx}, nil
}

// Conn 独占一条物理连接。
//
// 依赖连接级状态的操作（如 last_insert_rowid）必须在同一连接上完成，
// 映射层的一个工作单元应当使用一个 Conn 或 Tx。
func (d *DB) Conn(ctx context.Context) (*Conn, error) {
	c, err := d.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{session: session{q: c, dialect: d.dialect}, conn: c}, nil
}

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }
func (d *DB) Close() error                   { return d.db.Close() }

// Conn 单连接实现
type Conn struct {
	session
	conn *sql.Conn
}

func (c *Conn) Begin(ctx context.Context) (core.ITransaction, error) {
	return c.BeginTx(ctx, nil)
}

func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.ITransaction, error) {
	tx, err := c.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{session: session{q: tx, dialect: c.dialect}, ping: c.conn.PingContext, tx: tx}, nil
}

func (c *Conn) Ping(ctx context.Context) error { return c.conn.PingContext(ctx) }

// Close 将连接归还连接池
func (c *Conn) Close() error { return c.conn.Close() }

// MustExec 辅助：执行 DDL 等语句（用于测试环境）
func MustExec(ctx context.Context, d core.IDatabase, stmt string) {
	if _, err := d.Exec(ctx, stmt); err != nil {
		panic(fmt.Sprintf("basic: exec %q: %v", stmt, err))
	}
}
