// Package sql 将与方言无关的关系型命令描述翻译为可执行的 db.Command
//
// 描述只引用 schema 中的表与列；对象层（data/orm）负责把对象操作翻译成这些描述。
package sql

import (
	core "relmap/data/db"
	"relmap/data/schema"
)

// JoinType 连接类型
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

func (j JoinType) String() string {
	if j == LeftJoin {
		return "LEFT JOIN"
	}
	return "INNER JOIN"
}

// SortDirection 排序方向
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// Toggle 反转方向
func (d SortDirection) Toggle() SortDirection {
	if d == Ascending {
		return Descending
	}
	return Ascending
}

// AggregateFunction 聚合函数
type AggregateFunction int

const (
	AggregateNone AggregateFunction = iota
	AggregateCount
	AggregateSum
	AggregateAverage
	AggregateMin
	AggregateMax
)

// SelectColumn 投影列，TableAlias 为空时使用列所属表名
type SelectColumn struct {
	Column     *schema.Column
	TableAlias string
	Alias      string
}

// SelectJoin 连接
type SelectJoin struct {
	Table   *schema.Table
	Alias   string
	Type    JoinType
	On      []Filter
	Columns []SelectColumn
}

// OrderBy 排序项
type OrderBy struct {
	Column     *schema.Column
	TableAlias string
	Direction  SortDirection
}

// Limit 分页区间 [From, To)
type Limit struct {
	From int
	To   int
}

// Count 本页最多返回的行数
func (l Limit) Count() int {
	if l.To < l.From {
		return 0
	}
	return l.To - l.From
}

// Select 查询描述
type Select struct {
	Table   *schema.Table
	Columns []SelectColumn
	Joins   []SelectJoin
	Where   []Filter
	OrderBy []OrderBy
	Limit   *Limit
}

// AggregateColumn 聚合投影，Column 为 nil 且函数为 Count 时生成 COUNT(*)
type AggregateColumn struct {
	SelectColumn
	Function AggregateFunction
	Distinct bool
}

// SelectAggregate 聚合查询描述
type SelectAggregate struct {
	Select
	Aggregates []AggregateColumn
	GroupBy    []SelectColumn
}

// ColumnValue 列与值
type ColumnValue struct {
	Column *schema.Column
	Value  any
}

// Insert 插入描述
type Insert struct {
	Table  *schema.Table
	Values []ColumnValue
}

// Update 更新描述
type Update struct {
	Table *schema.Table
	Set   []ColumnValue
	Where []Filter
}

// Delete 删除描述
type Delete struct {
	Table *schema.Table
	Where []Filter
}

// IGenerator 命令生成器
type IGenerator interface {
	Select(s *Select) *core.Command
	SelectAggregate(s *SelectAggregate) *core.Command
	Insert(i *Insert) *core.Command
	Update(u *Update) *core.Command
	Delete(d *Delete) *core.Command

	CreateTable(t *schema.Table) *core.Command
	CreateIndex(idx *schema.Index) *core.Command
	CreateForeignKey(fk *schema.ForeignKey) *core.Command
	DropTable(t *schema.Table) *core.Command
	DropIndex(idx *schema.Index) *core.Command
	DropForeignKey(fk *schema.ForeignKey) *core.Command

	// LastAutogeneratedID 查询当前连接最近一次自增主键值
	LastAutogeneratedID(t *schema.Table) *core.Command
}
