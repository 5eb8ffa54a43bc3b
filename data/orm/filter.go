package orm

import (
	dbsql "relmap/data/db/sql"
)

type (
	CompareOperator   = dbsql.CompareOperator
	JoinType          = dbsql.JoinType
	SortDirection     = dbsql.SortDirection
	AggregateFunction = dbsql.AggregateFunction
)

const (
	Equal              = dbsql.Equal
	NotEqual           = dbsql.NotEqual
	GreaterThan        = dbsql.GreaterThan
	GreaterThanOrEqual = dbsql.GreaterThanOrEqual
	LessThan           = dbsql.LessThan
	LessThanOrEqual    = dbsql.LessThanOrEqual

	InnerJoin = dbsql.InnerJoin
	LeftJoin  = dbsql.LeftJoin

	Ascending  = dbsql.Ascending
	Descending = dbsql.Descending

	AggregateNone    = dbsql.AggregateNone
	AggregateCount   = dbsql.AggregateCount
	AggregateSum     = dbsql.AggregateSum
	AggregateAverage = dbsql.AggregateAverage
	AggregateMin     = dbsql.AggregateMin
	AggregateMax     = dbsql.AggregateMax
)

// Filter 对象层过滤条件，仅限本包定义的变体
type Filter interface {
	filter()
}

// MemberRef 成员引用
//
// Path 非空时翻译阶段按路径在查询中重新解析（必要时补建连接），
// 因此同一条件可以复用于多态查询的各个子类型查询。
// Path 为空且 TypeAlias 为空时按成员自身路径解析。
type MemberRef struct {
	Member    *DataMember
	TypeAlias string
	Path      string
}

// Ref 引用成员
func Ref(m *DataMember) MemberRef { return MemberRef{Member: m} }

// ValueCompareFilter 成员与值比较，值按成员的转换器转换为列值
type ValueCompareFilter struct {
	MemberRef
	Operator CompareOperator
	Value    any
}

// MemberCompareFilter 成员与成员比较
type MemberCompareFilter struct {
	MemberRef
	Operator CompareOperator
	Other    MemberRef
}

// RangeFilter 闭区间
type RangeFilter struct {
	MemberRef
	Min any
	Max any
}

// LikeFilter 模式匹配
type LikeFilter struct {
	MemberRef
	Pattern string
	Negate  bool
}

// InFilter 集合包含
type InFilter struct {
	MemberRef
	Values []any
	Negate bool
}

// CustomFilter 原样输出的条件片段
type CustomFilter struct {
	Text string
	Args []any
}

// AndFilter 以 AND 组合
type AndFilter struct {
	Filters []Filter
}

// OrFilter 以 OR 组合
type OrFilter struct {
	Filters []Filter
}

// ForeignKeyFilter 外键成员等于给定对象：对被引用类型的每个主键成员比较 member.pk
//
// Value 为 nil 时匹配外键为空的行。
type ForeignKeyFilter struct {
	// Member 相对查询根类型的外键路径，如 "Address" 或 "Address.Country"
	Member string
	Value  any
}

func (ValueCompareFilter) filter()  {}
func (MemberCompareFilter) filter() {}
func (RangeFilter) filter()         {}
func (LikeFilter) filter()          {}
func (InFilter) filter()            {}
func (CustomFilter) filter()        {}
func (AndFilter) filter()           {}
func (OrFilter) filter()            {}
func (ForeignKeyFilter) filter()    {}

// And 组合条件
func And(filters ...Filter) AndFilter { return AndFilter{Filters: filters} }

// Or 组合条件
func Or(filters ...Filter) OrFilter { return OrFilter{Filters: filters} }

// PrimaryKeyFilter 实例主键的等值条件（AND）
func PrimaryKeyFilter(dt *DataType, instance any) (Filter, error) {
	pk := dt.PrimaryKey()
	if len(pk) == 0 {
		return nil, mappingErrorf("type %s has no primary key", dt)
	}
	filters := make([]Filter, 0, len(pk))
	for _, m := range pk {
		v, _ := m.Member.Get(instance)
		filters = append(filters, ValueCompareFilter{MemberRef: Ref(m), Operator: Equal, Value: v})
	}
	if len(filters) == 1 {
		return filters[0], nil
	}
	return And(filters...), nil
}

// keyFilter 以主键值构造条件，values 顺序与主键成员一致
func keyFilter(dt *DataType, values []any) (Filter, error) {
	pk := dt.PrimaryKey()
	if len(pk) != len(values) {
		return nil, mappingErrorf("%s has %d primary key members, got %d values", dt, len(pk), len(values))
	}
	filters := make([]Filter, len(pk))
	for i, m := range pk {
		filters[i] = ValueCompareFilter{MemberRef: Ref(m), Operator: Equal, Value: values[i]}
	}
	if len(filters) == 1 {
		return filters[0], nil
	}
	return And(filters...), nil
}
