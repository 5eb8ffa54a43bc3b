package dialect

import (
	"testing"

	"relmap/data/schema"
)

func TestRebind_Postgres(t *testing.T) {
	d := New("postgres")
	q := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"
	got := d.Rebind(q)
	want := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got != want {
		t.Fatalf("Rebind mismatch\nwant: %s\ngot:  %s", want, got)
	}
}

func TestRebind_NoChangeForMySQLSQLite(t *testing.T) {
	tests := []struct {
		name string
		d    Dialect
	}{
		{"mysql", New("mysql")},
		{"sqlite", New("sqlite3")},
		{"unknown", New("unknown")},
	}

	orig := "DELETE FROM t WHERE id = ? AND name = ?"
	for _, tt := range tests {
		if got := tt.d.Rebind(orig); got != orig {
			t.Fatalf("%s: expected no change, got %s", tt.name, got)
		}
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		d    Dialect
		in   string
		want string
	}{
		{New("mysql"), "Person.Name", "`Person`.`Name`"},
		{New("sqlite"), "Person", `"Person"`},
		{New("postgres"), `we"ird`, `"we""ird"`},
		{New(""), "Person.Name", "Person.Name"},
	}
	for _, tt := range tests {
		if got := tt.d.QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("%s QuoteIdentifier(%q) = %q, want %q", tt.d.Name(), tt.in, got, tt.want)
		}
	}

	if got := New("sqlite").QuoteName("Employee_base.x"); got != `"Employee_base.x"` {
		t.Errorf("QuoteName = %q", got)
	}
}

func TestLastInsertIDQuery(t *testing.T) {
	cases := map[string]string{
		"sqlite":   "SELECT last_insert_rowid()",
		"mysql":    "SELECT LAST_INSERT_ID()",
		"postgres": "SELECT lastval()",
	}
	for name, want := range cases {
		if got := New(name).LastInsertIDQuery(); got != want {
			t.Errorf("%s: got %q, want %q", name, got, want)
		}
	}
}

func TestColumnType(t *testing.T) {
	auto := &schema.Column{Name: "Id", DbType: schema.Int64, IsPrimaryKey: true, IsAutoNumber: true}
	name := &schema.Column{Name: "Name", DbType: schema.String, Length: 100}
	nullable := &schema.Column{Name: "Note", DbType: schema.String, IsNullable: true}

	sqlite := New("sqlite")
	if got := sqlite.ColumnType(auto); got != "INTEGER PRIMARY KEY AUTOINCREMENT" {
		t.Errorf("sqlite auto: %q", got)
	}
	if !sqlite.InlinePrimaryKey(auto) || sqlite.InlinePrimaryKey(name) {
		t.Error("sqlite inline primary key mismatch")
	}
	if got := sqlite.ColumnType(name); got != "TEXT NOT NULL" {
		t.Errorf("sqlite string: %q", got)
	}
	if got := sqlite.ColumnType(nullable); got != "TEXT" {
		t.Errorf("sqlite nullable: %q", got)
	}

	mysql := New("mysql")
	if got := mysql.ColumnType(name); got != "VARCHAR(100) NOT NULL" {
		t.Errorf("mysql string: %q", got)
	}
	if got := mysql.ColumnType(auto); got != "BIGINT NOT NULL AUTO_INCREMENT" {
		t.Errorf("mysql auto: %q", got)
	}
	if mysql.InlinePrimaryKey(auto) || mysql.InlineForeignKeys() {
		t.Error("mysql should declare keys separately")
	}

	pg := New("postgres")
	if got := pg.ColumnType(&schema.Column{Name: "When", DbType: schema.DateTime, IsNullable: true}); got != "TIMESTAMP" {
		t.Errorf("postgres datetime: %q", got)
	}
}

func TestExistsQueries(t *testing.T) {
	q, args := New("sqlite").ExistsConstraintQuery("Employee", "FK_Employee_Person")
	if len(args) != 4 || args[3] != `%CONSTRAINT "FK_Employee_Person"%` {
		t.Fatalf("unexpected args %v for %s", args, q)
	}
	_, args = New("mysql").ExistsTableQuery("Person")
	if len(args) != 1 || args[0] != "Person" {
		t.Fatalf("unexpected args %v", args)
	}
}
