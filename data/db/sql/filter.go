package sql

import (
	"fmt"
	"strings"

	"relmap/data/schema"
)

// CompareOperator 比较运算符
type CompareOperator int

const (
	Equal CompareOperator = iota
	NotEqual
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
)

func (o CompareOperator) String() string {
	switch o {
	case NotEqual:
		return "<>"
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	default:
		return "="
	}
}

// LogicalOperator 逻辑运算符
type LogicalOperator int

const (
	And LogicalOperator = iota
	Or
)

// Filter 过滤条件，仅限本包定义的变体
type Filter interface {
	filter()
}

// ColumnRef 带表别名的列引用，TableAlias 为空时使用列所属表名
type ColumnRef struct {
	Column     *schema.Column
	TableAlias string
}

// ValueCompareFilter 列与值比较；值为 nil 时生成 IS [NOT] NULL
type ValueCompareFilter struct {
	ColumnRef
	Operator CompareOperator
	Value    any
}

// ColumnCompareFilter 列与列比较
type ColumnCompareFilter struct {
	ColumnRef
	Operator CompareOperator
	Other    ColumnRef
}

// RangeFilter 闭区间 BETWEEN
type RangeFilter struct {
	ColumnRef
	Min any
	Max any
}

// LikeFilter 模式匹配
type LikeFilter struct {
	ColumnRef
	Pattern string
	Negate  bool
}

// InFilter 集合包含，空集合恒假
type InFilter struct {
	ColumnRef
	Values []any
	Negate bool
}

// CustomFilter 原样输出的条件片段，参数使用 ? 占位符
type CustomFilter struct {
	Text string
	Args []any
}

// LogicalFilter 组合条件，空组合恒真
type LogicalFilter struct {
	Operator LogicalOperator
	Filters  []Filter
}

func (ValueCompareFilter) filter()  {}
func (ColumnCompareFilter) filter() {}
func (RangeFilter) filter()         {}
func (LikeFilter) filter()          {}
func (InFilter) filter()            {}
func (CustomFilter) filter()        {}
func (LogicalFilter) filter()       {}

// AndFilters 以 AND 组合
func AndFilters(filters ...Filter) LogicalFilter {
	return LogicalFilter{Operator: And, Filters: filters}
}

// OrFilters 以 OR 组合
func OrFilters(filters ...Filter) LogicalFilter {
	return LogicalFilter{Operator: Or, Filters: filters}
}

// writeFilter 输出单个条件，未知变体直接 panic
func (w *writer) writeFilter(f Filter) {
	switch v := f.(type) {
	case ValueCompareFilter:
		w.writeColumnRef(v.ColumnRef)
		if v.Value == nil {
			if v.Operator == NotEqual {
				w.sb.WriteString(" IS NOT NULL")
			} else {
				w.sb.WriteString(" IS NULL")
			}
			return
		}
		w.sb.WriteString(" " + v.Operator.String() + " ?")
		w.args = append(w.args, v.Value)
	case ColumnCompareFilter:
		w.writeColumnRef(v.ColumnRef)
		w.sb.WriteString(" " + v.Operator.String() + " ")
		w.writeColumnRef(v.Other)
	case RangeFilter:
		w.writeColumnRef(v.ColumnRef)
		w.sb.WriteString(" BETWEEN ? AND ?")
		w.args = append(w.args, v.Min, v.Max)
	case LikeFilter:
		w.writeColumnRef(v.ColumnRef)
		if v.Negate {
			w.sb.WriteString(" NOT")
		}
		w.sb.WriteString(" LIKE ?")
		w.args = append(w.args, v.Pattern)
	case InFilter:
		if len(v.Values) == 0 {
			if v.Negate {
				w.sb.WriteString("1 = 1")
			} else {
				w.sb.WriteString("1 = 0")
			}
			return
		}
		w.writeColumnRef(v.ColumnRef)
		if v.Negate {
			w.sb.WriteString(" NOT")
		}
		w.sb.WriteString(" IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(v.Values)), ", ") + ")")
		w.args = append(w.args, v.Values...)
	case CustomFilter:
		w.sb.WriteString("(" + v.Text + ")")
		w.args = append(w.args, v.Args...)
	case LogicalFilter:
		w.writeLogical(v)
	default:
		panic(fmt.Sprintf("sql: unsupported filter %T", f))
	}
}

func (w *writer) writeLogical(f LogicalFilter) {
	if len(f.Filters) == 0 {
		w.sb.WriteString("1 = 1")
		return
	}
	if len(f.Filters) == 1 {
		w.writeFilter(f.Filters[0])
		return
	}
	sep := " AND "
	if f.Operator == Or {
		sep = " OR "
	}
	w.sb.WriteByte('(')
	for i, sub := range f.Filters {
		if i > 0 {
			w.sb.WriteString(sep)
		}
		w.writeFilter(sub)
	}
	w.sb.WriteByte(')')
}

// writeWhere 以 AND 连接顶层条件
func (w *writer) writeWhere(filters []Filter) {
	if len(filters) == 0 {
		return
	}
	w.sb.WriteString(" WHERE ")
	for i, f := range filters {
		if i > 0 {
			w.sb.WriteString(" AND ")
		}
		w.writeFilter(f)
	}
}
