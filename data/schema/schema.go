// Package schema 描述关系模型：表、列、外键与索引
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// DbType 列的逻辑数据类型，由方言翻译为具体的列类型
type DbType int

const (
	Unknown DbType = iota
	Boolean
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Single
	Double
	String
	Binary
	DateTime
	Guid
)

var dbTypeNames = [...]string{"Unknown", "Boolean", "Int8", "Int16", "Int32", "Int64",
	"UInt8", "UInt16", "UInt32", "UInt64", "Single", "Double", "String", "Binary", "DateTime", "Guid"}

func (t DbType) String() string {
	if int(t) >= 0 && int(t) < len(dbTypeNames) {
		return dbTypeNames[t]
	}
	return fmt.Sprintf("DbType(%d)", int(t))
}

// IsNumeric 是否为数值类型
func (t DbType) IsNumeric() bool {
	return t >= Int8 && t <= Double
}

// IsInteger 是否为整数类型
func (t DbType) IsInteger() bool {
	return t >= Int8 && t <= UInt64
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// DbTypeFor 推断 Go 类型对应的 DbType；结构体、切片等复合类型返回 Unknown
func DbTypeFor(t reflect.Type) DbType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return DateTime
	}
	if t == bytesType {
		return Binary
	}
	switch t.Kind() {
	case reflect.Bool:
		return Boolean
	case reflect.Int8:
		return Int8
	case reflect.Int16:
		return Int16
	case reflect.Int32:
		return Int32
	case reflect.Int, reflect.Int64:
		return Int64
	case reflect.Uint8:
		return UInt8
	case reflect.Uint16:
		return UInt16
	case reflect.Uint32:
		return UInt32
	case reflect.Uint, reflect.Uint64:
		return UInt64
	case reflect.Float32:
		return Single
	case reflect.Float64:
		return Double
	case reflect.String:
		return String
	}
	return Unknown
}

// Table 数据表
type Table struct {
	Name        string
	Columns     []*Column
	ForeignKeys []*ForeignKey
	Indexes     []*Index
}

// NewTable 创建表
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// AddColumn 添加列，并将列归属到当前表
func (t *Table) AddColumn(c *Column) *Column {
	c.Table = t
	t.Columns = append(t.Columns, c)
	return c
}

// Column 按名称查找列（大小写不敏感）
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// PrimaryKey 主键列（保持声明顺序）
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

// AddForeignKey 添加外键
func (t *Table) AddForeignKey(fk *ForeignKey) *ForeignKey {
	fk.Table = t
	t.ForeignKeys = append(t.ForeignKeys, fk)
	return fk
}

// AddIndex 添加索引
func (t *Table) AddIndex(idx *Index) *Index {
	idx.Table = t
	t.Indexes = append(t.Indexes, idx)
	return idx
}

func (t *Table) String() string { return t.Name }

// Column 数据列
type Column struct {
	Name         string
	Table        *Table
	DbType       DbType
	Length       int
	IsNullable   bool
	IsPrimaryKey bool
	IsAutoNumber bool
}

// IsString 是否为字符串列
func (c *Column) IsString() bool { return c.DbType == String }

// IsNumeric 是否为数值列
func (c *Column) IsNumeric() bool { return c.DbType.IsNumeric() }

// FullName 返回 table.column
func (c *Column) FullName() string {
	if c.Table == nil {
		return c.Name
	}
	return c.Table.Name + "." + c.Name
}

func (c *Column) String() string { return c.FullName() }

// ConstraintAction 外键级联动作
type ConstraintAction string

const (
	NoAction ConstraintAction = "NO ACTION"
	Cascade  ConstraintAction = "CASCADE"
	SetNull  ConstraintAction = "SET NULL"
	Restrict ConstraintAction = "RESTRICT"
)

// ColumnPair 外键中本地列与远端列的对应
type ColumnPair struct {
	Local  *Column
	Remote *Column
}

// ForeignKey 外键约束，Columns 顺序即约束列顺序
type ForeignKey struct {
	Name         string
	Table        *Table
	RemoteTable  *Table
	Columns      []ColumnPair
	DeleteAction ConstraintAction
	UpdateAction ConstraintAction
}

// LocalColumns 本地列
func (fk *ForeignKey) LocalColumns() []*Column {
	out := make([]*Column, len(fk.Columns))
	for i, p := range fk.Columns {
		out[i] = p.Local
	}
	return out
}

// RemoteColumns 远端列
func (fk *ForeignKey) RemoteColumns() []*Column {
	out := make([]*Column, len(fk.Columns))
	for i, p := range fk.Columns {
		out[i] = p.Remote
	}
	return out
}

// Index 索引
type Index struct {
	Name    string
	Table   *Table
	Columns []*Column
	Unique  bool
}
