package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDbTypeFor(t *testing.T) {
	var p *int32
	tests := []struct {
		value any
		want  DbType
	}{
		{true, Boolean},
		{int(1), Int64},
		{p, Int32},
		{uint16(1), UInt16},
		{float32(1), Single},
		{"x", String},
		{[]byte("x"), Binary},
		{time.Now(), DateTime},
		{struct{}{}, Unknown},
		{uuid.New(), Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DbTypeFor(reflect.TypeOf(tt.value)), "%T", tt.value)
	}

	assert.True(t, Int32.IsNumeric())
	assert.True(t, Double.IsNumeric())
	assert.False(t, Double.IsInteger())
	assert.False(t, String.IsNumeric())
	assert.Equal(t, "Guid", Guid.String())
}

func TestTable(t *testing.T) {
	person := NewTable("Person")
	id := person.AddColumn(&Column{Name: "Id", DbType: Int64, IsPrimaryKey: true, IsAutoNumber: true})
	name := person.AddColumn(&Column{Name: "Name", DbType: String, Length: 100})

	assert.Same(t, person, id.Table)
	assert.Same(t, name, person.Column("name"))
	assert.Nil(t, person.Column("missing"))
	assert.Equal(t, []*Column{id}, person.PrimaryKey())
	assert.Equal(t, "Person.Name", name.FullName())
	assert.True(t, name.IsString())

	employee := NewTable("Employee")
	eid := employee.AddColumn(&Column{Name: "Id", DbType: Int64, IsPrimaryKey: true})
	fk := employee.AddForeignKey(&ForeignKey{
		Name:        "FK_Employee_Person",
		RemoteTable: person,
		Columns:     []ColumnPair{{Local: eid, Remote: id}},
	})
	require.Len(t, employee.ForeignKeys, 1)
	assert.Same(t, employee, fk.Table)
	assert.Equal(t, []*Column{eid}, fk.LocalColumns())
	assert.Equal(t, []*Column{id}, fk.RemoteColumns())

	idx := person.AddIndex(&Index{Name: "IX_Person_Name", Columns: []*Column{name}, Unique: true})
	assert.Same(t, person, idx.Table)
}
