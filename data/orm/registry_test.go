package orm

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/data/schema"
	"relmap/validation"
)

func expressions(members []*DataMember) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Expression()
	}
	return out
}

func TestDefaultMap_Tables(t *testing.T) {
	r := newRegistry(t)

	person := r.MustGetMap(Person{})
	assert.Equal(t, "Person", person.Table.Name)
	assert.Equal(t, []string{"Id", "Name", "Age", "Address.Id", "Tags"}, expressions(person.DataMembers))

	// 主键
	id := person.Table.Column("Id")
	require.NotNil(t, id)
	assert.True(t, id.IsPrimaryKey)
	assert.True(t, id.IsAutoNumber)
	assert.False(t, id.IsNullable)

	// 校验标签决定可空与长度
	name := person.Table.Column("Name")
	assert.False(t, name.IsNullable)
	assert.Equal(t, 50, name.Length)

	// 外键列
	fkCol := person.Table.Column("Address_Id")
	require.NotNil(t, fkCol)
	assert.True(t, fkCol.IsNullable)
	require.Len(t, person.Table.ForeignKeys, 1)
	fk := person.Table.ForeignKeys[0]
	assert.Equal(t, "FK_Person_Address", fk.Name)
	assert.Equal(t, "Address", fk.RemoteTable.Name)

	// JSON 成员以字符串列存储
	tags := person.Member("Tags")
	require.NotNil(t, tags)
	assert.NotNil(t, tags.Converter)
	assert.Equal(t, schema.String, tags.Column.DbType)

	// 集合成员不映射
	assert.Nil(t, person.Member("Pets"))
}

func TestDefaultMap_Inheritance(t *testing.T) {
	r := newRegistry(t)
	animal, dog, puppy := r.MustGetMap(Animal{}), r.MustGetMap(Dog{}), r.MustGetMap(Puppy{})

	assert.Nil(t, animal.BaseDataType())
	assert.Same(t, animal, dog.BaseDataType())
	assert.Same(t, dog, puppy.BaseDataType())
	assert.True(t, puppy.IsSubTypeOf(animal))
	assert.False(t, animal.IsSubTypeOf(puppy))

	// 只有根类型的主键自增
	assert.True(t, animal.Table.Column("Id").IsAutoNumber)
	assert.False(t, dog.Table.Column("Id").IsAutoNumber)

	// 基类型的成员不在子表中重复
	assert.Equal(t, []string{"Id", "Breed"}, expressions(dog.DataMembers))
	assert.Equal(t, []string{"Id", "Toy"}, expressions(puppy.DataMembers))

	// 主键在前，随后由近及远
	assert.Equal(t, []string{"Id", "Toy", "Breed", "Name"}, expressions(puppy.AllDataMembers()))

	require.Len(t, dog.Table.ForeignKeys, 1)
	assert.Equal(t, "FK_Dog_Animal", dog.Table.ForeignKeys[0].Name)

	assert.Equal(t, []*DataType{dog}, animal.SubDataTypes())
	assert.Equal(t, []*DataType{dog, puppy}, animal.SubDataTypesRecursive())
	assert.Len(t, animal.InboundForeignKeys(), 1)
}

func TestDefaultMap_SkipsTypesWithoutKey(t *testing.T) {
	type noKey struct{ Name string }
	r := NewRegistry()
	mapped, err := r.DefaultMap(noKey{}, Country{})
	require.NoError(t, err)
	assert.Len(t, mapped, 1)
	assert.False(t, r.IsMapped(noKey{}))
}

func TestRegistry_Errors(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Map(Person{}, nil)
	assert.True(t, IsMappingError(err), "重复映射")

	type unmapped struct{ Id int }
	_, err = r.GetMap(unmapped{})
	assert.True(t, IsMappingError(err), "未映射")

	r.Seal()
	assert.True(t, r.Sealed())
	type late struct{ Id int }
	_, err = r.Map(late{}, nil)
	assert.True(t, IsMappingError(err), "封存后不能映射")
}

func TestDefaultMap_InvalidTags(t *testing.T) {
	type spacedColumn struct {
		Id   int64
		Name string `orm:"column:first name"`
	}
	type spacedKey struct {
		Id int64 `orm:"primaryKey;column:my id"`
	}
	type badLength struct {
		Id   int64
		Name string `orm:"length:abc"`
	}
	type negativeLength struct {
		Id   int64
		Name string `orm:"length:-1"`
	}
	type spacedForeignKey struct {
		Id      int64
		Country *Country `orm:"column:home country"`
	}
	tests := []struct {
		name   string
		sample any
	}{
		{"列名含空格", spacedColumn{}},
		{"主键列名含空格", spacedKey{}},
		{"长度不是数字", badLength{}},
		{"长度为负", negativeLength{}},
		{"外键列名含空格", spacedForeignKey{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			_, err := r.DefaultMap(Country{}, tt.sample)
			assert.True(t, IsMappingError(err), "映射阶段即报错: %v", err)
		})
	}

	t.Run("已有表的列名非法", func(t *testing.T) {
		table := schema.NewTable("Named")
		table.AddColumn(&schema.Column{Name: "Id", DbType: schema.Int64, IsPrimaryKey: true})
		table.AddColumn(&schema.Column{Name: "first name", DbType: schema.String})
		_, err := NewRegistry().MapExisting(spacedColumn{}, table)
		assert.True(t, IsMappingError(err))
	})
}

func TestRegistry_MapWithoutTable(t *testing.T) {
	r := NewRegistry()
	dt, err := r.Map(&Country{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Country", dt.Table.Name)
	assert.Equal(t, []string{"Id"}, expressions(dt.DataMembers))

	// 列必须属于本表
	other := schema.NewTable("Other")
	col := other.AddColumn(&schema.Column{Name: "Name", DbType: schema.String})
	_, err = dt.AddMember("Name", col)
	assert.True(t, IsMappingError(err))

	own := dt.Table.AddColumn(&schema.Column{Name: "Name", DbType: schema.String})
	m, err := dt.AddMember("Name", own)
	require.NoError(t, err)
	assert.Same(t, m, dt.Member("Name"))
}

func TestRegistry_MapExisting(t *testing.T) {
	table := schema.NewTable("Countries")
	table.AddColumn(&schema.Column{Name: "Id", DbType: schema.Int64, IsPrimaryKey: true})
	table.AddColumn(&schema.Column{Name: "Name", DbType: schema.String})

	r := NewRegistry()
	dt, err := r.MapExisting(Country{}, table)
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Name"}, expressions(dt.DataMembers))
	assert.Len(t, dt.PrimaryKey(), 1)
}

func TestIsForeignKey(t *testing.T) {
	r := newRegistry(t)
	person := r.MustGetMap(Person{})

	assert.True(t, person.IsForeignKey("Address"))
	assert.False(t, person.IsForeignKey("Name"))
	assert.False(t, person.IsForeignKey("Pets"))
	assert.Equal(t, []string{"Address"}, person.ForeignKeyMembers())

	// 去掉一个外键分量成员后不再是外键
	var kept []*DataMember
	for _, m := range person.DataMembers {
		if m.Expression() != "Address.Id" {
			kept = append(kept, m)
		}
	}
	person.DataMembers = kept
	assert.False(t, person.IsForeignKey("Address"))
}

func TestCompositeKey(t *testing.T) {
	r := newRegistry(t)
	line := r.MustGetMap(OrderLine{})
	pk := line.PrimaryKey()
	require.Len(t, pk, 2)
	assert.False(t, pk[0].Column.IsAutoNumber)

	assert.False(t, line.IsSaved(&OrderLine{OrderId: 1}))
	assert.True(t, line.IsSaved(&OrderLine{OrderId: 1, Line: 2}))
}

func TestIsSaved(t *testing.T) {
	r := newRegistry(t)
	person := r.MustGetMap(Person{})
	assert.False(t, person.IsSaved(&Person{}))
	assert.True(t, person.IsSaved(&Person{Id: 7}))

	puppy := r.MustGetMap(Puppy{})
	p := &Puppy{}
	p.Id = 3
	assert.True(t, puppy.IsSaved(p))
}

func TestSetConverter(t *testing.T) {
	r := newRegistry(t)
	n := SetConverter(r, nil, reflect.TypeOf(""))
	assert.Greater(t, n, 3)
}

func TestDataMember_ParseValueAndCoerce(t *testing.T) {
	type Sized struct {
		Id    int64
		Small int8
		Count uint16
		At    time.Time
	}
	r := NewRegistry()
	_, err := r.DefaultMap(Sized{})
	require.NoError(t, err)
	dt := r.MustGetMap(Sized{})
	small, count := dt.Member("Small"), dt.Member("Count")

	t.Run("文本", func(t *testing.T) {
		v, err := small.ParseValue("-128")
		require.NoError(t, err)
		assert.Equal(t, int8(-128), v)

		for _, text := range []string{"300", "-129", "x"} {
			_, err := small.ParseValue(text)
			assert.True(t, IsMappingError(err), text)
		}
		_, err = count.ParseValue("70000")
		assert.True(t, IsMappingError(err))
		_, err = count.ParseValue("-1")
		assert.True(t, IsMappingError(err))
	})

	t.Run("数值", func(t *testing.T) {
		v, err := small.Coerce(int64(12))
		require.NoError(t, err)
		assert.Equal(t, int8(12), v)

		_, err = small.Coerce(int64(300))
		assert.True(t, IsMappingError(err))
		_, err = count.Coerce(-1)
		assert.True(t, IsMappingError(err))
		_, err = count.Coerce(uint64(1 << 20))
		assert.True(t, IsMappingError(err))
	})

	t.Run("时间文本", func(t *testing.T) {
		at := dt.Member("At")
		for _, text := range []string{
			"2024-03-05T10:11:12.5+01:00",
			"2024-03-05 10:11:12.5 +0100 CET",
			"2024-03-05 10:11:12.5 +0100 X",
			"2024-03-05 10:11:12.5 +0100 X m=+0.000000001",
		} {
			v, err := at.ParseValue(text)
			require.NoError(t, err, text)
			want := time.Date(2024, 3, 5, 9, 11, 12, 500000000, time.UTC)
			assert.True(t, want.Equal(v.(time.Time)), text)
		}
	})
}

func TestValidate(t *testing.T) {
	r := newRegistry(t)
	person := r.MustGetMap(Person{})

	errs := person.Validate(&Person{})
	require.Len(t, errs, 1)
	assert.Equal(t, []string{"Name"}, errs.Fields())

	person.Validators = append(person.Validators, ValidatorFunc(func(instance any) validation.Errors {
		if instance.(*Person).Age < 0 {
			return validation.Errors{{Field: "Age", Rule: "positive", Err: assert.AnError}}
		}
		return nil
	}))
	errs = person.Validate(&Person{Name: "ann", Age: -1})
	assert.Equal(t, []string{"Age"}, errs.Fields())
}
