package orm

import (
	"fmt"
	"strings"
)

// Key 查询结构的规范文本：根类型、连接、条件、排序与分页
//
// 结构相同的两个查询得到相同的 Key，可用作结果缓存的键。
func (s *Select) Key() string {
	var sb strings.Builder
	sb.WriteString(s.DataType.Table.Name)
	for _, j := range s.Joins {
		fmt.Fprintf(&sb, "|%s %s:%s", j.Type, j.DataType.Table.Name, j.Alias)
	}
	if len(s.Where) > 0 {
		sb.WriteString("|where ")
		writeFilters(&sb, "and", s.Where)
	}
	for _, o := range s.OrderBy {
		fmt.Fprintf(&sb, "|order %s %d", refKey(o.MemberRef), o.Direction)
	}
	if s.Limit != nil {
		fmt.Fprintf(&sb, "|limit %d,%d", s.Limit.From, s.Limit.To)
	}
	return sb.String()
}

// Tables 查询涉及的全部表名，根表在前
func (s *Select) Tables() []string {
	tables := []string{s.DataType.Table.Name}
	seen := map[string]bool{s.DataType.Table.Name: true}
	for _, j := range s.Joins {
		if name := j.DataType.Table.Name; !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}
	return tables
}

// IsCount 是否为 NewCountSelect 形式的行数统计
func (a *SelectAggregate) IsCount() bool {
	return len(a.Aggregates) == 1 && len(a.GroupBy) == 0 &&
		a.Aggregates[0].Function == AggregateCount && a.Aggregates[0].Member == nil
}

func refKey(r MemberRef) string {
	if r.Path != "" {
		return r.Path
	}
	if r.Member == nil {
		return "?"
	}
	if r.TypeAlias != "" {
		return r.TypeAlias + "." + r.Member.Expression()
	}
	return r.Member.String()
}

func writeFilters(sb *strings.Builder, op string, filters []Filter) {
	sb.WriteByte('(')
	for i, f := range filters {
		if i > 0 {
			sb.WriteString(" " + op + " ")
		}
		writeFilter(sb, f)
	}
	sb.WriteByte(')')
}

func writeFilter(sb *strings.Builder, f Filter) {
	switch v := f.(type) {
	case ValueCompareFilter:
		fmt.Fprintf(sb, "%s %d %#v", refKey(v.MemberRef), v.Operator, v.Value)
	case MemberCompareFilter:
		fmt.Fprintf(sb, "%s %d %s", refKey(v.MemberRef), v.Operator, refKey(v.Other))
	case RangeFilter:
		fmt.Fprintf(sb, "%s between %#v %#v", refKey(v.MemberRef), v.Min, v.Max)
	case LikeFilter:
		fmt.Fprintf(sb, "%s like(%t) %q", refKey(v.MemberRef), v.Negate, v.Pattern)
	case InFilter:
		fmt.Fprintf(sb, "%s in(%t) %#v", refKey(v.MemberRef), v.Negate, v.Values)
	case CustomFilter:
		fmt.Fprintf(sb, "%q %#v", v.Text, v.Args)
	case AndFilter:
		writeFilters(sb, "and", v.Filters)
	case OrFilter:
		writeFilters(sb, "or", v.Filters)
	case ForeignKeyFilter:
		fmt.Fprintf(sb, "%s = %+v", v.Member, v.Value)
	default:
		fmt.Fprintf(sb, "%T", f)
	}
}
