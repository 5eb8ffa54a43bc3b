package sql

import (
	core "relmap/data/db"
)

// Update 生成 UPDATE；没有可更新的列时 panic，调用方应先跳过
func (g *Generator) Update(u *Update) *core.Command {
	if len(u.Set) == 0 {
		panic("sql: update of " + u.Table.Name + " has no columns to set")
	}

	w := g.newWriter()
	w.sb.WriteString("UPDATE ")
	w.sb.WriteString(w.quote("table", u.Table.Name))
	w.sb.WriteString(" SET ")
	for i, v := range u.Set {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.sb.WriteString(w.quote("column", v.Column.Name))
		w.sb.WriteString(" = ?")
		w.args = append(w.args, v.Value)
	}
	w.writeWhere(u.Where)
	return w.command()
}

// Delete 生成 DELETE
func (g *Generator) Delete(d *Delete) *core.Command {
	w := g.newWriter()
	w.sb.WriteString("DELETE FROM ")
	w.sb.WriteString(w.quote("table", d.Table.Name))
	w.writeWhere(d.Where)
	return w.command()
}
