// Package db 定义映射层所依赖的原生数据库契约
//
// 映射层只通过 IExecutor 与数据库交互：执行命令、取标量、读取结果集、
// 探测表/约束/数据是否存在。具体实现见 data/db/basic。
package db

import (
	"context"
	"database/sql"
	"strings"
)

// IDatabase 通用数据库接口
type IDatabase interface {
	// 查询操作
	Query(ctx context.Context, query string, args ...any) (IRows, error)
	QueryRow(ctx context.Context, query string, args ...any) IRow

	// 执行操作
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	// 事务操作
	Begin(ctx context.Context) (ITransaction, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (ITransaction, error)

	// 连接管理
	Ping(ctx context.Context) error
	Close() error
}

// IDialectNameProvider 可选接口：提供底层数据库方言名称
type IDialectNameProvider interface {
	// GetDialectName 返回底层数据库方言名称，如 "mysql"、"sqlite"、"postgres"
	GetDialectName() string
}

// ITransaction 事务接口
type ITransaction interface {
	IDatabase

	Commit() error
	Rollback() error
}

// IRows 查询结果集接口
type IRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error

	Columns() ([]string, error)
}

// IRow 单行结果接口
type IRow interface {
	Scan(dest ...any) error
	Err() error
}

// Statement 单条 SQL 语句及其参数（统一使用 ? 占位符）
type Statement struct {
	Text string
	Args []any
}

// Command 可批量执行的命令，按顺序包含一条或多条语句
type Command struct {
	Statements []Statement
}

// NewCommand 创建单语句命令
func NewCommand(text string, args ...any) *Command {
	return &Command{Statements: []Statement{{Text: text, Args: args}}}
}

// Append 追加另一个命令的全部语句
func (c *Command) Append(other *Command) *Command {
	if other != nil {
		c.Statements = append(c.Statements, other.Statements...)
	}
	return c
}

// Len 语句数量
func (c *Command) Len() int { return len(c.Statements) }

// String 以分号连接全部语句文本（不含参数）
func (c *Command) String() string {
	parts := make([]string, len(c.Statements))
	for i, s := range c.Statements {
		parts[i] = s.Text
	}
	return strings.Join(parts, ";\n")
}

// Args 按顺序汇总全部参数
func (c *Command) Args() []any {
	var args []any
	for _, s := range c.Statements {
		args = append(args, s.Args...)
	}
	return args
}

// Record 一行数据：列名（或别名）到值
type Record map[string]any

// IDataReader 惰性、只进的结果读取器
//
// 批量命令的每条语句对应一个结果集，NextResult 前进到下一个结果集。
type IDataReader interface {
	// Next 前进到当前结果集的下一行
	Next() bool
	// Record 当前行
	Record() Record
	// Columns 当前结果集的列名
	Columns() []string
	// NextResult 前进到下一个结果集，没有更多结果集时返回 false
	NextResult() bool
	Err() error
	Close() error
}

// IExecutor 原生数据库执行器
type IExecutor interface {
	// Execute 执行不返回行的命令，返回受影响行数之和
	Execute(ctx context.Context, cmd *Command) (int64, error)
	// GetScalar 返回首行首列，无结果时返回 nil
	GetScalar(ctx context.Context, cmd *Command) (any, error)
	// GetDataReader 打开读取器，调用方负责 Close
	GetDataReader(ctx context.Context, cmd *Command) (IDataReader, error)

	ExistsTable(ctx context.Context, table string) (bool, error)
	ExistsConstraint(ctx context.Context, table, constraint string) (bool, error)
	// ExistsData 命令是否返回至少一行
	ExistsData(ctx context.Context, cmd *Command) (bool, error)

	Close() error
}

// DBConfig 数据库配置
type DBConfig struct {
	Driver   string // mysql, postgres, sqlite, etc.
	DSN      string // 直接给出的连接串，优先于其他字段
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// 连接池配置
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}
