package sql

import (
	"strings"

	core "relmap/data/db"
	"relmap/data/db/dialect"
	"relmap/data/schema"
)

// Insert 生成单行 INSERT；没有任何值时插入默认行
func (g *Generator) Insert(i *Insert) *core.Command {
	w := g.newWriter()
	w.sb.WriteString("INSERT INTO ")
	w.sb.WriteString(w.quote("table", i.Table.Name))

	if len(i.Values) == 0 {
		if g.dialect.Name() == dialect.NameMySQL {
			w.sb.WriteString(" () VALUES ()")
		} else {
			w.sb.WriteString(" DEFAULT VALUES")
		}
		return w.command()
	}

	cols := make([]string, len(i.Values))
	for n, v := range i.Values {
		cols[n] = w.quote("column", v.Column.Name)
		w.args = append(w.args, v.Value)
	}
	w.sb.WriteString(" (")
	w.sb.WriteString(strings.Join(cols, ", "))
	w.sb.WriteString(") VALUES (")
	w.sb.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(i.Values)), ", "))
	w.sb.WriteString(")")
	return w.command()
}

// LastAutogeneratedID 查询当前连接最近一次自增值
func (g *Generator) LastAutogeneratedID(t *schema.Table) *core.Command {
	return core.NewCommand(g.dialect.LastInsertIDQuery())
}
