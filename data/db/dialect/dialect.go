package dialect

import (
	"fmt"
	"strconv"
	"strings"

	core "relmap/data/db"
	"relmap/data/schema"
)

// Name 标准化的数据库方言名称
type Name string

const (
	NameMySQL    Name = "mysql"
	NameSQLite   Name = "sqlite"
	NamePostgres Name = "postgres"
	NameUnknown  Name = ""
)

// Dialect 表示当前数据库的方言能力
//
// 只抽象命令生成与执行器实际用到的能力：标识符转义、占位符改写、
// 列类型、自增主键、最近自增值查询以及表/约束存在性探测。
type Dialect struct {
	name Name
}

// New 根据字符串构造方言（大小写不敏感）
func New(name string) Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return Dialect{name: NameMySQL}
	case "sqlite", "sqlite3":
		return Dialect{name: NameSQLite}
	case "postgres", "postgresql", "pgx":
		return Dialect{name: NamePostgres}
	default:
		return Dialect{name: NameUnknown}
	}
}

// FromDatabase 从实现了 IDialectNameProvider 的对象推断方言，否则返回 Unknown
func FromDatabase(db any) Dialect {
	if p, ok := db.(core.IDialectNameProvider); ok {
		return New(p.GetDialectName())
	}
	return Dialect{name: NameUnknown}
}

// Name 返回标准化方言名
func (d Dialect) Name() Name {
	return d.name
}

// QuoteIdentifier 根据方言对标识符进行转义（如表名/列名）。
//
// 约定：
//   - 支持 schema.table、table.column 等带点形式，会对每一段分别加引号；
//   - MySQL 使用反引号 `name`，Postgres/SQLite 使用双引号 "name"；
//   - Unknown 方言返回原始字符串，不做修改。
func (d Dialect) QuoteIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = d.quotePart(p)
	}
	return strings.Join(parts, ".")
}

// QuoteName 对单个标识符加引号，不按点拆分（用于别名）
func (d Dialect) QuoteName(name string) string {
	return d.quotePart(name)
}

func (d Dialect) quotePart(p string) string {
	switch d.name {
	case NameMySQL:
		return "`" + strings.ReplaceAll(p, "`", "``") + "`"
	case NameSQLite, NamePostgres:
		return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	default:
		return p
	}
}

// Rebind 将通用占位符 ? 转换为方言特定形式。
//
// 目前仅对 Postgres 做替换，将 ? 依次替换为 $1、$2...；
// 不区分字符串字面量中的 ?，命令生成器只通过参数传值。
func (d Dialect) Rebind(query string) string {
	if query == "" || d.name != NamePostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 4)
	argIndex := 1
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '?' {
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(argIndex))
			argIndex++
		} else {
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

// LastInsertIDQuery 查询当前连接最近一次自增值的语句
func (d Dialect) LastInsertIDQuery() string {
	switch d.name {
	case NameMySQL:
		return "SELECT LAST_INSERT_ID()"
	case NamePostgres:
		return "SELECT lastval()"
	default:
		return "SELECT last_insert_rowid()"
	}
}

// InlineForeignKeys 外键是否只能在 CREATE TABLE 中声明（SQLite 不支持 ALTER TABLE ADD CONSTRAINT）
func (d Dialect) InlineForeignKeys() bool {
	return d.name == NameSQLite || d.name == NameUnknown
}

// ColumnType 列的完整类型声明（不含列名）
//
// 自增主键在 SQLite 中只能写成 INTEGER PRIMARY KEY AUTOINCREMENT，
// 此时由 InlinePrimaryKey 告知生成器不要再生成表级主键。
func (d Dialect) ColumnType(c *schema.Column) string {
	if c.IsAutoNumber {
		switch d.name {
		case NameMySQL:
			return "BIGINT NOT NULL AUTO_INCREMENT"
		case NamePostgres:
			return "BIGSERIAL NOT NULL"
		default:
			return "INTEGER PRIMARY KEY AUTOINCREMENT"
		}
	}
	t := d.typeName(c)
	if !c.IsNullable || c.IsPrimaryKey {
		t += " NOT NULL"
	}
	return t
}

// InlinePrimaryKey 自增列是否已在列声明中包含主键
func (d Dialect) InlinePrimaryKey(c *schema.Column) bool {
	return c.IsAutoNumber && (d.name == NameSQLite || d.name == NameUnknown)
}

func (d Dialect) typeName(c *schema.Column) string {
	switch c.DbType {
	case schema.Boolean:
		if d.name == NamePostgres {
			return "BOOLEAN"
		}
		if d.name == NameMySQL {
			return "TINYINT(1)"
		}
		return "INTEGER"
	case schema.Int8, schema.Int16, schema.UInt8:
		if d.name == NameSQLite {
			return "INTEGER"
		}
		return "SMALLINT"
	case schema.Int32, schema.UInt16:
		if d.name == NameSQLite {
			return "INTEGER"
		}
		return "INT"
	case schema.Int64, schema.UInt32, schema.UInt64:
		if d.name == NameSQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case schema.Single, schema.Double:
		switch d.name {
		case NameSQLite:
			return "REAL"
		case NamePostgres:
			return "DOUBLE PRECISION"
		}
		return "DOUBLE"
	case schema.Binary:
		switch d.name {
		case NamePostgres:
			return "BYTEA"
		case NameMySQL:
			return "LONGBLOB"
		}
		return "BLOB"
	case schema.DateTime:
		switch d.name {
		case NamePostgres:
			return "TIMESTAMP"
		case NameMySQL:
			return "DATETIME(6)"
		}
		return "DATETIME"
	case schema.Guid:
		if d.name == NamePostgres {
			return "UUID"
		}
		return "CHAR(36)"
	default:
		if d.name == NameSQLite {
			return "TEXT"
		}
		if c.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.Length)
		}
		if d.name == NameMySQL && c.IsPrimaryKey {
			return "VARCHAR(255)"
		}
		return "TEXT"
	}
}

// ExistsTableQuery 探测表是否存在的查询
func (d Dialect) ExistsTableQuery(table string) (string, []any) {
	switch d.name {
	case NameMySQL:
		return "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{table}
	case NamePostgres:
		return "SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?", []any{table}
	default:
		return "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", []any{table}
	}
}

// ExistsConstraintQuery 探测约束（外键、索引）是否存在的查询
//
// SQLite 的外键只存在于建表语句中，因此通过匹配建表 SQL 判断。
func (d Dialect) ExistsConstraintQuery(table, constraint string) (string, []any) {
	switch d.name {
	case NameMySQL:
		return "SELECT 1 FROM information_schema.table_constraints WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = ?" +
				" UNION SELECT 1 FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?",
			[]any{table, constraint, table, constraint}
	case NamePostgres:
		return "SELECT 1 FROM information_schema.table_constraints WHERE table_name = ? AND constraint_name = ?" +
				" UNION SELECT 1 FROM pg_indexes WHERE tablename = ? AND indexname = ?",
			[]any{table, constraint, table, constraint}
	default:
		return "SELECT 1 FROM sqlite_master WHERE (type = 'index' AND tbl_name = ? AND name = ?)" +
				" OR (type = 'table' AND name = ? AND sql LIKE ?)",
			[]any{table, constraint, table, "%CONSTRAINT " + d.QuoteName(constraint) + "%"}
	}
}
