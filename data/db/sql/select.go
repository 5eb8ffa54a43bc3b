package sql

import (
	"strings"

	core "relmap/data/db"
	"relmap/data/db/dialect"
)

// Generator 基于方言的命令生成器
type Generator struct {
	dialect dialect.Dialect
}

var _ IGenerator = (*Generator)(nil)

// New 创建生成器
func New(d dialect.Dialect) *Generator {
	return &Generator{dialect: d}
}

// Dialect 当前方言
func (g *Generator) Dialect() dialect.Dialect { return g.dialect }

// writer 单条语句的输出缓冲
type writer struct {
	dialect dialect.Dialect
	sb      strings.Builder
	args    []any
	// root 根表在本语句中的别名，为空时使用表名
	root     string
	rootName string
}

func (g *Generator) newWriter() *writer {
	return &writer{dialect: g.dialect}
}

func (w *writer) command() *core.Command {
	return core.NewCommand(w.sb.String(), w.args...)
}

func (w *writer) quote(kind, name string) string {
	return w.dialect.QuoteName(mustIdentifier(kind, name))
}

func (w *writer) writeColumnRef(ref ColumnRef) {
	alias := ref.TableAlias
	if alias == "" {
		alias = ref.Column.Table.Name
		if w.root != "" && alias == w.rootName {
			alias = w.root
		}
	}
	w.sb.WriteString(w.quote("table", alias))
	w.sb.WriteByte('.')
	w.sb.WriteString(w.quote("column", ref.Column.Name))
}

func (w *writer) writeSelectColumn(c SelectColumn) {
	w.writeColumnRef(ColumnRef{Column: c.Column, TableAlias: c.TableAlias})
	if c.Alias != "" {
		w.sb.WriteString(" AS ")
		w.sb.WriteString(w.quote("alias", c.Alias))
	}
}

// aliasRoot 连接别名与根表名冲突时（自引用外键），为根表另起别名
func (w *writer) aliasRoot(s *Select) {
	taken := make(map[string]bool, len(s.Joins))
	clash := false
	for _, j := range s.Joins {
		alias := j.Alias
		if alias == "" {
			alias = j.Table.Name
		}
		taken[strings.ToLower(alias)] = true
		if strings.EqualFold(alias, s.Table.Name) {
			clash = true
		}
	}
	if !clash {
		return
	}
	root := s.Table.Name + "_root"
	for taken[strings.ToLower(root)] {
		root += "_"
	}
	w.root, w.rootName = root, s.Table.Name
}

// Select 生成 SELECT
//
//	SELECT cols FROM t [JOIN ...] [WHERE ...] [ORDER BY ...] [LIMIT ? OFFSET ?]
func (g *Generator) Select(s *Select) *core.Command {
	w := g.newWriter()
	w.aliasRoot(s)
	w.sb.WriteString("SELECT ")
	first := true
	for _, c := range s.Columns {
		if !first {
			w.sb.WriteString(", ")
		}
		first = false
		w.writeSelectColumn(c)
	}
	for _, j := range s.Joins {
		for _, c := range j.Columns {
			if !first {
				w.sb.WriteString(", ")
			}
			first = false
			if c.TableAlias == "" {
				c.TableAlias = j.Alias
			}
			w.writeSelectColumn(c)
		}
	}
	if first {
		w.sb.WriteString("*")
	}
	w.writeFromClause(s)
	w.writeTail(s, nil)
	return w.command()
}

// SelectAggregate 生成聚合 SELECT，投影只包含聚合列
func (g *Generator) SelectAggregate(s *SelectAggregate) *core.Command {
	w := g.newWriter()
	w.aliasRoot(&s.Select)
	w.sb.WriteString("SELECT ")
	for i, a := range s.Aggregates {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.writeAggregate(a)
	}
	if len(s.Aggregates) == 0 {
		w.sb.WriteString("COUNT(*)")
	}
	w.writeFromClause(&s.Select)
	w.writeTail(&s.Select, s.GroupBy)
	return w.command()
}

func (w *writer) writeAggregate(a AggregateColumn) {
	fn := ""
	switch a.Function {
	case AggregateCount:
		fn = "COUNT"
	case AggregateSum:
		fn = "SUM"
	case AggregateAverage:
		fn = "AVG"
	case AggregateMin:
		fn = "MIN"
	case AggregateMax:
		fn = "MAX"
	}
	if fn == "" {
		w.writeSelectColumn(a.SelectColumn)
		return
	}
	w.sb.WriteString(fn + "(")
	if a.Distinct {
		w.sb.WriteString("DISTINCT ")
	}
	if a.Column == nil {
		w.sb.WriteString("*")
	} else {
		w.writeColumnRef(ColumnRef{Column: a.Column, TableAlias: a.TableAlias})
	}
	w.sb.WriteString(")")
	if a.Alias != "" {
		w.sb.WriteString(" AS ")
		w.sb.WriteString(w.quote("alias", a.Alias))
	}
}

func (w *writer) writeFromClause(s *Select) {
	w.sb.WriteString(" FROM ")
	w.sb.WriteString(w.quote("table", s.Table.Name))
	if w.root != "" {
		w.sb.WriteString(" AS ")
		w.sb.WriteString(w.quote("alias", w.root))
	}
	for _, j := range s.Joins {
		w.sb.WriteString(" " + j.Type.String() + " ")
		w.sb.WriteString(w.quote("table", j.Table.Name))
		if j.Alias != "" && j.Alias != j.Table.Name {
			w.sb.WriteString(" AS ")
			w.sb.WriteString(w.quote("alias", j.Alias))
		}
		w.sb.WriteString(" ON ")
		if len(j.On) == 0 {
			w.sb.WriteString("1 = 1")
		}
		for i, f := range j.On {
			if i > 0 {
				w.sb.WriteString(" AND ")
			}
			w.writeFilter(f)
		}
	}
}

func (w *writer) writeTail(s *Select, groupBy []SelectColumn) {
	w.writeWhere(s.Where)
	if len(groupBy) > 0 {
		w.sb.WriteString(" GROUP BY ")
		for i, c := range groupBy {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.writeColumnRef(ColumnRef{Column: c.Column, TableAlias: c.TableAlias})
		}
	}
	if len(s.OrderBy) > 0 {
		w.sb.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.writeColumnRef(ColumnRef{Column: o.Column, TableAlias: o.TableAlias})
			if o.Direction == Descending {
				w.sb.WriteString(" DESC")
			} else {
				w.sb.WriteString(" ASC")
			}
		}
	}
	if s.Limit != nil {
		w.sb.WriteString(" LIMIT ? OFFSET ?")
		w.args = append(w.args, s.Limit.Count(), s.Limit.From)
	}
}
