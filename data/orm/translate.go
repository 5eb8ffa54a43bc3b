package orm

import (
	"fmt"

	dbsql "relmap/data/db/sql"
)

// translator 将对象层操作翻译为 data/db/sql 的关系描述
//
// 查询时 sel 非 nil：成员引用按路径在 sel 中解析，需要时补建连接，
// 因此条件与排序必须先于连接翻译。写操作只允许引用目标表的列。
type translator struct {
	sel   *Select
	dtype *DataType
}

func (t *translator) column(ref MemberRef) (dbsql.ColumnRef, error) {
	if ref.Member == nil {
		return dbsql.ColumnRef{}, mappingErrorf("filter on %s references no member", t.dtype)
	}
	if t.sel == nil {
		if ref.Member.Column.Table != t.dtype.Table {
			return dbsql.ColumnRef{}, mappingErrorf("member %s is not stored in table %s", ref.Member, t.dtype.Table.Name)
		}
		return dbsql.ColumnRef{Column: ref.Member.Column, TableAlias: ref.TypeAlias}, nil
	}
	if ref.Path != "" || ref.TypeAlias == "" {
		path := ref.Path
		if path == "" {
			path = ref.Member.Expression()
		}
		r, err := t.sel.resolve(path)
		if ref.Path != "" && err != nil {
			return dbsql.ColumnRef{}, err
		}
		if err == nil && r.Member != nil && (ref.Path != "" || sameMember(r.Member, ref.Member)) {
			return dbsql.ColumnRef{Column: r.Member.Column, TableAlias: r.Alias}, nil
		}
	}
	return dbsql.ColumnRef{Column: ref.Member.Column, TableAlias: ref.TypeAlias}, nil
}

// sameMember 各级主键经连接相等，可互相替代
func sameMember(a, b *DataMember) bool {
	return a == b || (a.Column.IsPrimaryKey && b.Column.IsPrimaryKey)
}

func (t *translator) filters(in []Filter) ([]dbsql.Filter, error) {
	out := make([]dbsql.Filter, 0, len(in))
	for _, f := range in {
		sf, err := t.filter(f)
		if err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return out, nil
}

// filter 翻译单个条件；未知变体属于编程错误，直接 panic
func (t *translator) filter(f Filter) (dbsql.Filter, error) {
	switch v := f.(type) {
	case ValueCompareFilter:
		col, err := t.column(v.MemberRef)
		if err != nil {
			return nil, err
		}
		value, err := v.Member.ToColumn(v.Value)
		if err != nil {
			return nil, err
		}
		return dbsql.ValueCompareFilter{ColumnRef: col, Operator: v.Operator, Value: value}, nil
	case MemberCompareFilter:
		col, err := t.column(v.MemberRef)
		if err != nil {
			return nil, err
		}
		other, err := t.column(v.Other)
		if err != nil {
			return nil, err
		}
		return dbsql.ColumnCompareFilter{ColumnRef: col, Operator: v.Operator, Other: other}, nil
	case RangeFilter:
		col, err := t.column(v.MemberRef)
		if err != nil {
			return nil, err
		}
		lo, err := v.Member.ToColumn(v.Min)
		if err != nil {
			return nil, err
		}
		hi, err := v.Member.ToColumn(v.Max)
		if err != nil {
			return nil, err
		}
		return dbsql.RangeFilter{ColumnRef: col, Min: lo, Max: hi}, nil
	case LikeFilter:
		col, err := t.column(v.MemberRef)
		if err != nil {
			return nil, err
		}
		return dbsql.LikeFilter{ColumnRef: col, Pattern: v.Pattern, Negate: v.Negate}, nil
	case InFilter:
		col, err := t.column(v.MemberRef)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(v.Values))
		for i, raw := range v.Values {
			if values[i], err = v.Member.ToColumn(raw); err != nil {
				return nil, err
			}
		}
		return dbsql.InFilter{ColumnRef: col, Values: values, Negate: v.Negate}, nil
	case CustomFilter:
		return dbsql.CustomFilter{Text: v.Text, Args: v.Args}, nil
	case AndFilter:
		children, err := t.filters(v.Filters)
		if err != nil {
			return nil, err
		}
		return dbsql.AndFilters(children...), nil
	case OrFilter:
		children, err := t.filters(v.Filters)
		if err != nil {
			return nil, err
		}
		return dbsql.OrFilters(children...), nil
	case ForeignKeyFilter:
		return t.foreignKey(v)
	default:
		panic(fmt.Sprintf("orm: unsupported filter %T", f))
	}
}

// foreignKey 外键等于对象：对被引用主键的每个成员比较本地列
func (t *translator) foreignKey(f ForeignKeyFilter) (dbsql.Filter, error) {
	sel := t.sel
	if sel == nil {
		sel = &Select{DataType: t.dtype}
	}
	r, err := sel.resolve(f.Member)
	if err != nil {
		return nil, err
	}
	if r.Member != nil {
		return nil, mappingErrorf("%q is not a foreign key of %s", f.Member, t.dtype)
	}
	if t.sel == nil && (len(sel.Joins) > 0 || r.Owner != t.dtype) {
		return nil, mappingErrorf("foreign key %q is not stored in table %s", f.Member, t.dtype.Table.Name)
	}
	ref, _ := r.Owner.foreignKeyTarget(r.ForeignKey)
	pk := ref.PrimaryKey()
	var out []dbsql.Filter
	for i, local := range r.Owner.ForeignKeyComponents(r.ForeignKey) {
		var value any
		if f.Value != nil {
			raw, _ := pk[i].Member.Get(f.Value)
			if value, err = local.ToColumn(raw); err != nil {
				return nil, err
			}
		}
		out = append(out, dbsql.ValueCompareFilter{
			ColumnRef: dbsql.ColumnRef{Column: local.Column, TableAlias: r.Alias},
			Operator:  dbsql.Equal,
			Value:     value,
		})
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return dbsql.AndFilters(out...), nil
}

// selectBody 翻译条件、排序、分页与连接（不含根投影）
func (t *translator) selectBody(s *Select) (*dbsql.Select, error) {
	where, err := t.filters(s.Where)
	if err != nil {
		return nil, err
	}
	out := &dbsql.Select{Table: s.DataType.Table, Where: where}
	for _, o := range s.OrderBy {
		col, err := t.column(o.MemberRef)
		if err != nil {
			return nil, err
		}
		out.OrderBy = append(out.OrderBy, dbsql.OrderBy{Column: col.Column, TableAlias: col.TableAlias, Direction: o.Direction})
	}
	if s.Limit != nil {
		out.Limit = &dbsql.Limit{From: s.Limit.From, To: s.Limit.To}
	}
	return out, nil
}

// joins 在条件与投影都解析完成后翻译连接
func (t *translator) joins(s *Select, withMembers bool) ([]dbsql.SelectJoin, error) {
	var out []dbsql.SelectJoin
	for i := 0; i < len(s.Joins); i++ {
		j := s.Joins[i]
		on, err := t.filters(j.On)
		if err != nil {
			return nil, err
		}
		sj := dbsql.SelectJoin{Table: j.DataType.Table, Alias: j.Alias, Type: j.Type, On: on}
		if withMembers {
			for _, m := range j.Members {
				sj.Columns = append(sj.Columns, dbsql.SelectColumn{Column: m.Member.Column, TableAlias: j.Alias, Alias: m.Alias})
			}
		}
		out = append(out, sj)
	}
	return out, nil
}

func (t *translator) selectCommand(s *Select) (*dbsql.Select, error) {
	out, err := t.selectBody(s)
	if err != nil {
		return nil, err
	}
	for _, m := range s.Members {
		out.Columns = append(out.Columns, dbsql.SelectColumn{Column: m.Member.Column, Alias: m.Alias})
	}
	if out.Joins, err = t.joins(s, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *translator) aggregateCommand(a *SelectAggregate) (*dbsql.SelectAggregate, error) {
	body, err := t.selectBody(&a.Select)
	if err != nil {
		return nil, err
	}
	out := &dbsql.SelectAggregate{Select: *body}
	for _, ag := range a.Aggregates {
		col := dbsql.SelectColumn{Alias: ag.Alias}
		if ag.Member != nil {
			ref, err := t.column(ag.MemberRef)
			if err != nil {
				return nil, err
			}
			col.Column, col.TableAlias = ref.Column, ref.TableAlias
		}
		out.Aggregates = append(out.Aggregates, dbsql.AggregateColumn{SelectColumn: col, Function: ag.Function, Distinct: ag.Distinct})
	}
	for _, g := range a.GroupBy {
		ref, err := t.column(g)
		if err != nil {
			return nil, err
		}
		out.GroupBy = append(out.GroupBy, dbsql.SelectColumn{Column: ref.Column, TableAlias: ref.TableAlias})
	}
	if out.Joins, err = t.joins(&a.Select, false); err != nil {
		return nil, err
	}
	return out, nil
}
