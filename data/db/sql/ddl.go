package sql

import (
	"strings"

	core "relmap/data/db"
	"relmap/data/db/dialect"
	"relmap/data/schema"
)

// CreateTable 生成建表语句。
//
// 对只能内联外键的方言（SQLite），外键约束写在建表语句中，CreateForeignKey 返回空命令。
func (g *Generator) CreateTable(t *schema.Table) *core.Command {
	w := g.newWriter()
	w.sb.WriteString("CREATE TABLE ")
	w.sb.WriteString(w.quote("table", t.Name))
	w.sb.WriteString(" (\n")

	var defs []string
	inlinePK := false
	for _, c := range t.Columns {
		defs = append(defs, "  "+w.quote("column", c.Name)+" "+g.dialect.ColumnType(c))
		if g.dialect.InlinePrimaryKey(c) {
			inlinePK = true
		}
	}
	if pk := t.PrimaryKey(); len(pk) > 0 && !inlinePK {
		defs = append(defs, "  PRIMARY KEY ("+w.columnList(pk)+")")
	}
	if g.dialect.InlineForeignKeys() {
		for _, fk := range t.ForeignKeys {
			defs = append(defs, "  "+w.foreignKeyClause(fk))
		}
	}
	w.sb.WriteString(strings.Join(defs, ",\n"))
	w.sb.WriteString("\n)")
	return w.command()
}

// CreateIndex 生成建索引语句
func (g *Generator) CreateIndex(idx *schema.Index) *core.Command {
	w := g.newWriter()
	w.sb.WriteString("CREATE ")
	if idx.Unique {
		w.sb.WriteString("UNIQUE ")
	}
	w.sb.WriteString("INDEX ")
	w.sb.WriteString(w.quote("index", idx.Name))
	w.sb.WriteString(" ON ")
	w.sb.WriteString(w.quote("table", idx.Table.Name))
	w.sb.WriteString(" (" + w.columnList(idx.Columns) + ")")
	return w.command()
}

// CreateForeignKey 生成 ALTER TABLE ADD CONSTRAINT；内联外键的方言返回空命令
func (g *Generator) CreateForeignKey(fk *schema.ForeignKey) *core.Command {
	if g.dialect.InlineForeignKeys() {
		return &core.Command{}
	}
	w := g.newWriter()
	w.sb.WriteString("ALTER TABLE ")
	w.sb.WriteString(w.quote("table", fk.Table.Name))
	w.sb.WriteString(" ADD ")
	w.sb.WriteString(w.foreignKeyClause(fk))
	return w.command()
}

// DropTable 生成删表语句
func (g *Generator) DropTable(t *schema.Table) *core.Command {
	w := g.newWriter()
	w.sb.WriteString("DROP TABLE ")
	w.sb.WriteString(w.quote("table", t.Name))
	return w.command()
}

// DropIndex 生成删索引语句
func (g *Generator) DropIndex(idx *schema.Index) *core.Command {
	w := g.newWriter()
	w.sb.WriteString("DROP INDEX ")
	w.sb.WriteString(w.quote("index", idx.Name))
	if g.dialect.Name() == dialect.NameMySQL {
		w.sb.WriteString(" ON ")
		w.sb.WriteString(w.quote("table", idx.Table.Name))
	}
	return w.command()
}

// DropForeignKey 生成删外键语句；内联外键随表删除，返回空命令
func (g *Generator) DropForeignKey(fk *schema.ForeignKey) *core.Command {
	if g.dialect.InlineForeignKeys() {
		return &core.Command{}
	}
	w := g.newWriter()
	w.sb.WriteString("ALTER TABLE ")
	w.sb.WriteString(w.quote("table", fk.Table.Name))
	if g.dialect.Name() == dialect.NameMySQL {
		w.sb.WriteString(" DROP FOREIGN KEY ")
	} else {
		w.sb.WriteString(" DROP CONSTRAINT ")
	}
	w.sb.WriteString(w.quote("constraint", fk.Name))
	return w.command()
}

func (w *writer) columnList(cols []*schema.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = w.quote("column", c.Name)
	}
	return strings.Join(names, ", ")
}

// foreignKeyClause CONSTRAINT fk FOREIGN KEY (a, b) REFERENCES t (x, y) [ON DELETE ..] [ON UPDATE ..]
func (w *writer) foreignKeyClause(fk *schema.ForeignKey) string {
	var sb strings.Builder
	sb.WriteString("CONSTRAINT ")
	sb.WriteString(w.quote("constraint", fk.Name))
	sb.WriteString(" FOREIGN KEY (")
	sb.WriteString(w.columnList(fk.LocalColumns()))
	sb.WriteString(") REFERENCES ")
	sb.WriteString(w.quote("table", fk.RemoteTable.Name))
	sb.WriteString(" (")
	sb.WriteString(w.columnList(fk.RemoteColumns()))
	sb.WriteString(")")
	if fk.DeleteAction != "" && fk.DeleteAction != schema.NoAction {
		sb.WriteString(" ON DELETE " + string(fk.DeleteAction))
	}
	if fk.UpdateAction != "" && fk.UpdateAction != schema.NoAction {
		sb.WriteString(" ON UPDATE " + string(fk.UpdateAction))
	}
	return sb.String()
}
