package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinAliases(s *Select) []string {
	out := make([]string, len(s.Joins))
	for i, j := range s.Joins {
		out[i] = j.Alias
	}
	return out
}

func memberAliases(s *Select) []string {
	var out []string
	for _, m := range s.AllMembers() {
		out = append(out, m.Alias)
	}
	return out
}

func TestSelect_AddMember(t *testing.T) {
	r := newRegistry(t)
	s, err := NewSelect(r.MustGetMap(Person{}))
	require.NoError(t, err)

	t.Run("本类型成员", func(t *testing.T) {
		ms, err := s.AddMember("Name")
		require.NoError(t, err)
		require.Len(t, ms, 1)
		assert.Equal(t, "", ms[0].TypeAlias)
		assert.Equal(t, "Name", ms[0].Alias)
		assert.Empty(t, s.Joins)
	})

	t.Run("外键路径左连接", func(t *testing.T) {
		ms, err := s.AddMember("Address.City")
		require.NoError(t, err)
		require.Len(t, ms, 1)
		assert.Equal(t, "Address", ms[0].TypeAlias)
		assert.Equal(t, "Address_City", ms[0].Alias)
		assert.Equal(t, "Address", ms[0].Prefix)
		require.Len(t, s.Joins, 1)
		assert.Equal(t, LeftJoin, s.Joins[0].Type)
	})

	t.Run("重复添加复用连接与成员", func(t *testing.T) {
		before := len(s.AllMembers())
		ms, err := s.AddMember("Address.City")
		require.NoError(t, err)
		assert.Same(t, s.FindMember("Address.City"), ms[0])
		assert.Len(t, s.AllMembers(), before)
		assert.Len(t, s.Joins, 1)
	})

	t.Run("多级外键", func(t *testing.T) {
		ms, err := s.AddMember("Address.Country.Name")
		require.NoError(t, err)
		assert.Equal(t, "Address_Country_Name", ms[0].Alias)
		assert.Equal(t, []string{"Address", "Address_Country"}, joinAliases(s))
	})

	t.Run("外键成员本身投影主键列", func(t *testing.T) {
		ms, err := s.AddMember("Address")
		require.NoError(t, err)
		require.Len(t, ms, 1)
		assert.Equal(t, "Address.Id", ms[0].Path())
		assert.Equal(t, "", ms[0].TypeAlias)
		assert.Equal(t, "Address_Id", ms[0].Alias)
	})

	t.Run("未知成员", func(t *testing.T) {
		_, err := s.AddMember("Nope")
		assert.True(t, IsMappingError(err))
		_, err = s.AddMember("")
		assert.True(t, IsMappingError(err))
	})
}

func TestSelect_InheritedMembers(t *testing.T) {
	r := newRegistry(t)
	s, err := NewSelect(r.MustGetMap(Puppy{}), WithMembers("Toy", "Breed", "Name"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Dog_base", "Animal_base"}, joinAliases(s))
	for _, j := range s.Joins {
		assert.Equal(t, InnerJoin, j.Type)
	}
	assert.Equal(t, "Animal_base", s.FindMember("Name").TypeAlias)
	assert.Equal(t, "Dog_base", s.FindMember("Breed").TypeAlias)

	// 再次添加不新增连接
	require.NoError(t, s.AddMembers("Name", "Breed"))
	assert.Len(t, s.Joins, 2)
}

func TestSelect_InheritedThroughForeignKey(t *testing.T) {
	type Kennel struct {
		Id   int64
		Dog  *Dog
		Note string
	}
	r := NewRegistry()
	_, err := r.DefaultMap(Animal{}, Dog{}, Kennel{})
	require.NoError(t, err)

	s, err := NewSelect(r.MustGetMap(Kennel{}), WithMembers("Dog.Name"))
	require.NoError(t, err)
	// 连接对象内的基类型连接带上对象别名前缀，且沿用左连接
	assert.Equal(t, []string{"Dog", "Dog_Animal_base"}, joinAliases(s))
	assert.Equal(t, LeftJoin, s.Joins[1].Type)
	assert.Equal(t, "Dog_Name", s.FindMember("Dog.Name").Alias)
}

func TestSelect_DefaultMembers(t *testing.T) {
	r := newRegistry(t)

	t.Run("没有标记时取全部成员并展开外键一层", func(t *testing.T) {
		s, err := NewSelect(r.MustGetMap(Person{}), WithDefaultMembers())
		require.NoError(t, err)
		assert.Equal(t, []string{"Id", "Name", "Age", "Address_Id", "Tags", "Address_City"}, memberAliases(s))
		assert.Equal(t, []string{"Address"}, joinAliases(s))
	})

	t.Run("有标记时取主键与标记成员", func(t *testing.T) {
		s, err := NewSelect(r.MustGetMap(Address{}), WithDefaultMembers())
		require.NoError(t, err)
		assert.Equal(t, []string{"Id", "City", "Country_Name"}, memberAliases(s))
	})
}

func TestSelect_OrderBy(t *testing.T) {
	r := newRegistry(t)
	s, err := NewSelect(r.MustGetMap(Person{}))
	require.NoError(t, err)

	dir, err := s.ToggleOrderBy("Name")
	require.NoError(t, err)
	assert.Equal(t, Ascending, dir)
	dir, err = s.ToggleOrderBy("Name")
	require.NoError(t, err)
	assert.Equal(t, Descending, dir)
	dir, err = s.ToggleOrderBy("Name")
	require.NoError(t, err)
	assert.Equal(t, Ascending, dir)
	assert.Len(t, s.OrderBy, 1)

	require.NoError(t, s.OrderByPath("Address.City", Descending))
	assert.Len(t, s.OrderBy, 2)
	assert.Equal(t, "Address", s.OrderBy[1].TypeAlias)

	_, err = s.ToggleOrderBy("Address")
	assert.True(t, IsMappingError(err), "外键成员不能直接排序")
}

func TestSelect_Filter(t *testing.T) {
	r := newRegistry(t)
	s, err := NewSelect(r.MustGetMap(Person{}),
		WithWhere("Address.City", Equal, "Oslo"),
		WithWhere("Address", Equal, &Address{Id: 3}))
	require.NoError(t, err)
	require.Len(t, s.Where, 2)
	assert.IsType(t, ValueCompareFilter{}, s.Where[0])
	assert.IsType(t, ForeignKeyFilter{}, s.Where[1])

	assert.Error(t, s.Filter("Address", GreaterThan, &Address{}))
}

func TestSelectLimit(t *testing.T) {
	assert.Equal(t, 10, NewSelectLimit(20, 30).Count())
	assert.Equal(t, 0, SelectLimit{From: 5, To: 2}.Count())
	assert.Equal(t, SelectLimit{From: 20, To: 30}, *Page(2, 10))

	r := newRegistry(t)
	_, err := NewSelect(r.MustGetMap(Person{}), WithLimit(5, 1))
	assert.True(t, IsMappingError(err))
}

func TestNewCountSelect(t *testing.T) {
	r := newRegistry(t)
	s, err := NewSelect(r.MustGetMap(Person{}),
		WithMembers("Name", "Address.City"),
		WithWhere("Age", GreaterThan, 18),
		WithOrderBy("Name", Ascending),
		WithLimit(0, 10))
	require.NoError(t, err)

	c := NewCountSelect(s)
	assert.True(t, c.IsCount())
	assert.Empty(t, c.AllMembers())
	assert.Empty(t, c.OrderBy)
	assert.Nil(t, c.Limit)
	assert.Len(t, c.Where, 1)
	assert.Len(t, c.Joins, 1)

	// 原查询不受影响
	assert.Len(t, s.AllMembers(), 2)
	assert.NotNil(t, s.Limit)
}

func TestSelect_Key(t *testing.T) {
	r := newRegistry(t)
	build := func(age int) *Select {
		s, err := NewSelect(r.MustGetMap(Person{}), WithWhere("Age", GreaterThan, age))
		require.NoError(t, err)
		return s
	}
	assert.Equal(t, build(18).Key(), build(18).Key())
	assert.NotEqual(t, build(18).Key(), build(21).Key())
	assert.Equal(t, []string{"Person"}, build(1).Tables())
}
