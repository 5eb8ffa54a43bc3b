package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/data/db/dialect"
	"relmap/data/schema"
)

type fixture struct {
	person, employee, address *schema.Table
	personID, personName      *schema.Column
	personAddress             *schema.Column
	employeeID, salary        *schema.Column
	addressID, street         *schema.Column
	fk                        *schema.ForeignKey
}

func newFixture() *fixture {
	f := &fixture{
		person:   schema.NewTable("Person"),
		employee: schema.NewTable("Employee"),
		address:  schema.NewTable("Address"),
	}
	f.addressID = f.address.AddColumn(&schema.Column{Name: "Id", DbType: schema.Int64, IsPrimaryKey: true, IsAutoNumber: true})
	f.street = f.address.AddColumn(&schema.Column{Name: "Street", DbType: schema.String, Length: 200})
	f.personID = f.person.AddColumn(&schema.Column{Name: "Id", DbType: schema.Int64, IsPrimaryKey: true, IsAutoNumber: true})
	f.personName = f.person.AddColumn(&schema.Column{Name: "Name", DbType: schema.String, Length: 100})
	f.personAddress = f.person.AddColumn(&schema.Column{Name: "Address_Id", DbType: schema.Int64, IsNullable: true})
	f.employeeID = f.employee.AddColumn(&schema.Column{Name: "Id", DbType: schema.Int64, IsPrimaryKey: true})
	f.salary = f.employee.AddColumn(&schema.Column{Name: "Salary", DbType: schema.Double})
	f.fk = f.employee.AddForeignKey(&schema.ForeignKey{
		Name:         "FK_Employee_Person",
		RemoteTable:  f.person,
		Columns:      []schema.ColumnPair{{Local: f.employeeID, Remote: f.personID}},
		DeleteAction: schema.Cascade,
	})
	return f
}

func TestGenerator_Select(t *testing.T) {
	f := newFixture()
	g := New(dialect.New("sqlite"))

	cmd := g.Select(&Select{
		Table:   f.employee,
		Columns: []SelectColumn{{Column: f.employeeID, Alias: "Id"}, {Column: f.salary, Alias: "Salary"}},
		Joins: []SelectJoin{
			{
				Table: f.person, Alias: "Person_base", Type: InnerJoin,
				On:      []Filter{ColumnCompareFilter{ColumnRef: ColumnRef{Column: f.employeeID}, Other: ColumnRef{Column: f.personID, TableAlias: "Person_base"}}},
				Columns: []SelectColumn{{Column: f.personName, Alias: "Name"}},
			},
			{
				Table: f.address, Alias: "Address", Type: LeftJoin,
				On:      []Filter{ColumnCompareFilter{ColumnRef: ColumnRef{Column: f.personAddress, TableAlias: "Person_base"}, Other: ColumnRef{Column: f.addressID, TableAlias: "Address"}}},
				Columns: []SelectColumn{{Column: f.street, Alias: "Address_Street"}},
			},
		},
		Where:   []Filter{ValueCompareFilter{ColumnRef: ColumnRef{Column: f.personName, TableAlias: "Person_base"}, Operator: Equal, Value: "ann"}},
		OrderBy: []OrderBy{{Column: f.salary, Direction: Descending}},
		Limit:   &Limit{From: 20, To: 30},
	})

	require.Equal(t, 1, cmd.Len())
	assert.Equal(t,
		`SELECT "Employee"."Id" AS "Id", "Employee"."Salary" AS "Salary", "Person_base"."Name" AS "Name", "Address"."Street" AS "Address_Street"`+
			` FROM "Employee" INNER JOIN "Person" AS "Person_base" ON "Employee"."Id" = "Person_base"."Id"`+
			` LEFT JOIN "Address" ON "Person_base"."Address_Id" = "Address"."Id"`+
			` WHERE "Person_base"."Name" = ? ORDER BY "Employee"."Salary" DESC LIMIT ? OFFSET ?`,
		cmd.Statements[0].Text)
	assert.Equal(t, []any{"ann", 10, 20}, cmd.Statements[0].Args)
}

func TestGenerator_SelectAggregate(t *testing.T) {
	f := newFixture()
	g := New(dialect.New("mysql"))

	cmd := g.SelectAggregate(&SelectAggregate{
		Select: Select{Table: f.employee, Where: []Filter{RangeFilter{ColumnRef: ColumnRef{Column: f.salary}, Min: 1, Max: 9}}},
		Aggregates: []AggregateColumn{
			{SelectColumn: SelectColumn{Alias: "Count"}, Function: AggregateCount},
			{SelectColumn: SelectColumn{Column: f.salary, Alias: "Total"}, Function: AggregateSum, Distinct: true},
			{SelectColumn: SelectColumn{Column: f.employeeID, Alias: "Id"}},
		},
		GroupBy: []SelectColumn{{Column: f.employeeID}},
	})

	assert.Equal(t,
		"SELECT COUNT(*) AS `Count`, SUM(DISTINCT `Employee`.`Salary`) AS `Total`, `Employee`.`Id` AS `Id`"+
			" FROM `Employee` WHERE `Employee`.`Salary` BETWEEN ? AND ? GROUP BY `Employee`.`Id`",
		cmd.Statements[0].Text)
	assert.Equal(t, []any{1, 9}, cmd.Statements[0].Args)
}

func TestGenerator_SelfJoinAliasesRoot(t *testing.T) {
	node := schema.NewTable("Node")
	id := node.AddColumn(&schema.Column{Name: "Id", DbType: schema.Int64, IsPrimaryKey: true, IsAutoNumber: true})
	parent := node.AddColumn(&schema.Column{Name: "Node_Id", DbType: schema.Int64, IsNullable: true})
	g := New(dialect.New("sqlite"))

	self := SelectJoin{
		Table: node, Alias: "Node", Type: LeftJoin,
		On:      []Filter{ColumnCompareFilter{ColumnRef: ColumnRef{Column: parent}, Other: ColumnRef{Column: id, TableAlias: "Node"}}},
		Columns: []SelectColumn{{Column: id, Alias: "Node_Id"}},
	}

	t.Run("查询时根表另起别名", func(t *testing.T) {
		cmd := g.Select(&Select{
			Table:   node,
			Columns: []SelectColumn{{Column: id, Alias: "Id"}},
			Joins:   []SelectJoin{self},
			Where:   []Filter{ValueCompareFilter{ColumnRef: ColumnRef{Column: id, TableAlias: "Node"}, Operator: Equal, Value: 1}},
			OrderBy: []OrderBy{{Column: id}},
		})
		assert.Equal(t,
			`SELECT "Node_root"."Id" AS "Id", "Node"."Id" AS "Node_Id"`+
				` FROM "Node" AS "Node_root" LEFT JOIN "Node" ON "Node_root"."Node_Id" = "Node"."Id"`+
				` WHERE "Node"."Id" = ? ORDER BY "Node_root"."Id" ASC`,
			cmd.Statements[0].Text)
	})

	t.Run("聚合同样处理", func(t *testing.T) {
		cmd := g.SelectAggregate(&SelectAggregate{
			Select:     Select{Table: node, Joins: []SelectJoin{{Table: node, Alias: "Node", Type: LeftJoin, On: self.On}}},
			Aggregates: []AggregateColumn{{SelectColumn: SelectColumn{Column: id, Alias: "Count"}, Function: AggregateCount}},
		})
		assert.Equal(t,
			`SELECT COUNT("Node_root"."Id") AS "Count" FROM "Node" AS "Node_root" LEFT JOIN "Node" ON "Node_root"."Node_Id" = "Node"."Id"`,
			cmd.Statements[0].Text)
	})

	t.Run("别名已被占用时追加后缀", func(t *testing.T) {
		cmd := g.Select(&Select{
			Table:   node,
			Columns: []SelectColumn{{Column: id, Alias: "Id"}},
			Joins:   []SelectJoin{self, {Table: node, Alias: "Node_root", Type: LeftJoin, On: []Filter{ColumnCompareFilter{ColumnRef: ColumnRef{Column: id, TableAlias: "Node"}, Other: ColumnRef{Column: parent, TableAlias: "Node_root"}}}}},
		})
		assert.Contains(t, cmd.Statements[0].Text, `FROM "Node" AS "Node_root_" LEFT JOIN "Node" ON "Node_root_"."Node_Id" = "Node"."Id"`)
		assert.Contains(t, cmd.Statements[0].Text, `SELECT "Node_root_"."Id" AS "Id"`)
	})

	t.Run("无冲突时不加别名", func(t *testing.T) {
		cmd := g.Select(&Select{Table: node, Columns: []SelectColumn{{Column: id, Alias: "Id"}}})
		assert.Equal(t, `SELECT "Node"."Id" AS "Id" FROM "Node"`, cmd.Statements[0].Text)
	})
}

func TestGenerator_Filters(t *testing.T) {
	f := newFixture()
	g := New(dialect.New("postgres"))
	name := ColumnRef{Column: f.personName}

	cmd := g.Delete(&Delete{Table: f.person, Where: []Filter{
		ValueCompareFilter{ColumnRef: ColumnRef{Column: f.personAddress}, Operator: Equal},
		ValueCompareFilter{ColumnRef: name, Operator: NotEqual},
		OrFilters(
			LikeFilter{ColumnRef: name, Pattern: "a%"},
			InFilter{ColumnRef: name, Values: []any{"x", "y"}, Negate: true},
			InFilter{ColumnRef: name},
		),
		AndFilters(),
		CustomFilter{Text: `length("Name") > ?`, Args: []any{3}},
		ValueCompareFilter{ColumnRef: ColumnRef{Column: f.personID}, Operator: GreaterThanOrEqual, Value: 5},
	}})

	assert.Equal(t,
		`DELETE FROM "Person" WHERE "Person"."Address_Id" IS NULL AND "Person"."Name" IS NOT NULL`+
			` AND ("Person"."Name" LIKE ? OR "Person"."Name" NOT IN (?, ?) OR 1 = 0) AND 1 = 1`+
			` AND (length("Name") > ?) AND "Person"."Id" >= ?`,
		cmd.Statements[0].Text)
	assert.Equal(t, []any{"a%", "x", "y", 3, 5}, cmd.Statements[0].Args)
}

type unknownFilter struct{ Filter }

func TestGenerator_UnknownFilterPanics(t *testing.T) {
	f := newFixture()
	g := New(dialect.New("sqlite"))
	assert.Panics(t, func() {
		g.Delete(&Delete{Table: f.person, Where: []Filter{unknownFilter{}}})
	})
}

func TestGenerator_InsertUpdate(t *testing.T) {
	f := newFixture()
	g := New(dialect.New("sqlite"))

	ins := g.Insert(&Insert{Table: f.person, Values: []ColumnValue{{Column: f.personName, Value: "ann"}, {Column: f.personAddress, Value: nil}}})
	assert.Equal(t, `INSERT INTO "Person" ("Name", "Address_Id") VALUES (?, ?)`, ins.Statements[0].Text)
	assert.Equal(t, []any{"ann", nil}, ins.Statements[0].Args)

	empty := g.Insert(&Insert{Table: f.person})
	assert.Equal(t, `INSERT INTO "Person" DEFAULT VALUES`, empty.Statements[0].Text)
	assert.Equal(t, "INSERT INTO `Person` () VALUES ()", New(dialect.New("mysql")).Insert(&Insert{Table: f.person}).Statements[0].Text)

	upd := g.Update(&Update{
		Table: f.person,
		Set:   []ColumnValue{{Column: f.personName, Value: "bob"}},
		Where: []Filter{ValueCompareFilter{ColumnRef: ColumnRef{Column: f.personID}, Value: int64(1)}},
	})
	assert.Equal(t, `UPDATE "Person" SET "Name" = ? WHERE "Person"."Id" = ?`, upd.Statements[0].Text)
	assert.Equal(t, []any{"bob", int64(1)}, upd.Statements[0].Args)

	assert.Panics(t, func() { g.Update(&Update{Table: f.person}) })
	assert.Equal(t, "SELECT last_insert_rowid()", g.LastAutogeneratedID(f.person).Statements[0].Text)
}

func TestGenerator_DDL(t *testing.T) {
	f := newFixture()

	sqlite := New(dialect.New("sqlite"))
	assert.Equal(t, "CREATE TABLE \"Person\" (\n"+
		"  \"Id\" INTEGER PRIMARY KEY AUTOINCREMENT,\n"+
		"  \"Name\" TEXT NOT NULL,\n"+
		"  \"Address_Id\" INTEGER\n)", sqlite.CreateTable(f.person).Statements[0].Text)
	assert.Equal(t, "CREATE TABLE \"Employee\" (\n"+
		"  \"Id\" INTEGER NOT NULL,\n"+
		"  \"Salary\" REAL NOT NULL,\n"+
		"  PRIMARY KEY (\"Id\"),\n"+
		"  CONSTRAINT \"FK_Employee_Person\" FOREIGN KEY (\"Id\") REFERENCES \"Person\" (\"Id\") ON DELETE CASCADE\n)",
		sqlite.CreateTable(f.employee).Statements[0].Text)
	assert.Equal(t, 0, sqlite.CreateForeignKey(f.fk).Len())
	assert.Equal(t, 0, sqlite.DropForeignKey(f.fk).Len())

	mysql := New(dialect.New("mysql"))
	assert.Equal(t, "ALTER TABLE `Employee` ADD CONSTRAINT `FK_Employee_Person` FOREIGN KEY (`Id`) REFERENCES `Person` (`Id`) ON DELETE CASCADE",
		mysql.CreateForeignKey(f.fk).Statements[0].Text)
	assert.Equal(t, "ALTER TABLE `Employee` DROP FOREIGN KEY `FK_Employee_Person`", mysql.DropForeignKey(f.fk).Statements[0].Text)
	assert.NotContains(t, mysql.CreateTable(f.employee).Statements[0].Text, "FOREIGN KEY")

	idx := f.person.AddIndex(&schema.Index{Name: "IX_Person_Name", Columns: []*schema.Column{f.personName}, Unique: true})
	assert.Equal(t, `CREATE UNIQUE INDEX "IX_Person_Name" ON "Person" ("Name")`, sqlite.CreateIndex(idx).Statements[0].Text)
	assert.Equal(t, "DROP INDEX `IX_Person_Name` ON `Person`", mysql.DropIndex(idx).Statements[0].Text)
	assert.Equal(t, `DROP TABLE "Person"`, sqlite.DropTable(f.person).Statements[0].Text)
}

func TestIsSafeIdentifier(t *testing.T) {
	assert.True(t, IsSafeIdentifier("Person_base"))
	assert.True(t, IsSafeIdentifier("main.Person"))
	assert.False(t, IsSafeIdentifier("1abc"))
	assert.False(t, IsSafeIdentifier("a b"))
	assert.False(t, IsSafeIdentifier("a;"))
	assert.False(t, IsSafeIdentifier(""))
	assert.Panics(t, func() {
		New(dialect.New("sqlite")).DropTable(schema.NewTable("bad name"))
	})
}

func TestLimitAndDirection(t *testing.T) {
	assert.Equal(t, 10, Limit{From: 20, To: 30}.Count())
	assert.Equal(t, 0, Limit{From: 5, To: 1}.Count())
	assert.Equal(t, Descending, Ascending.Toggle())
	assert.Equal(t, Ascending, Descending.Toggle())
}
