package orm

import (
	"strings"
)

// SelectMember 一个投影成员
type SelectMember struct {
	Member *DataMember
	// TypeAlias 成员列所在的类型别名，根类型为 ""
	TypeAlias string
	// Prefix 成员所属对象在根实例上的路径
	Prefix string
	// Alias 结果列别名：完整路径中的 . 替换为 _
	Alias string
}

// Path 根实例上的完整成员路径
func (m *SelectMember) Path() string {
	if m.Prefix == "" {
		return m.Member.Expression()
	}
	return m.Prefix + "." + m.Member.Expression()
}

// SelectJoin 连接：别名在同一查询内唯一，连接图是以根类型为根的树
type SelectJoin struct {
	Type     JoinType
	DataType *DataType
	Alias    string
	On       []Filter
	Members  []*SelectMember

	prefix string
}

// OrderBy 排序项
type OrderBy struct {
	MemberRef
	Direction SortDirection
}

// SelectLimit 分页区间 [From, To)
type SelectLimit struct {
	From int
	To   int
}

// NewSelectLimit 创建分页区间
func NewSelectLimit(from, to int) *SelectLimit {
	return &SelectLimit{From: from, To: to}
}

// Count 本页最多返回的行数
func (l SelectLimit) Count() int {
	if l.To < l.From {
		return 0
	}
	return l.To - l.From
}

// Page 第 page 页（从 0 开始）的区间
func Page(page, size int) *SelectLimit {
	return &SelectLimit{From: page * size, To: (page + 1) * size}
}

// Select 对象层查询
//
// 没有任何投影成员的 Select 在提交时按默认成员展开。
type Select struct {
	DataType *DataType
	Members  []*SelectMember
	Joins    []*SelectJoin
	Where    []Filter
	OrderBy  []OrderBy
	Limit    *SelectLimit
}

// NewSelect 创建查询
func NewSelect(dt *DataType, opts ...SelectOption) (*Select, error) {
	if dt == nil {
		return nil, mappingErrorf("select requires a data type")
	}
	s := &Select{DataType: dt}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Join 按别名查找连接
func (s *Select) Join(alias string) *SelectJoin {
	for _, j := range s.Joins {
		if j.Alias == alias {
			return j
		}
	}
	return nil
}

// AllMembers 根成员在前，随后按连接顺序的连接成员
func (s *Select) AllMembers() []*SelectMember {
	out := append([]*SelectMember(nil), s.Members...)
	for _, j := range s.Joins {
		out = append(out, j.Members...)
	}
	return out
}

// FindMember 按完整路径查找已投影成员
func (s *Select) FindMember(path string) *SelectMember {
	for _, m := range s.AllMembers() {
		if m.Path() == path {
			return m
		}
	}
	return nil
}

// AddMember 按路径投影成员
//
//   - 根类型自身的成员直接投影；
//   - 基类型的成员经 {Base}_base 内连接投影；
//   - 外键路径逐段左连接，别名为已走过的路径（. 换为 _）。
//
// 路径止于外键成员本身时投影其各个主键列。重复调用复用已有连接和成员。
func (s *Select) AddMember(path string) ([]*SelectMember, error) {
	r, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if r.Member == nil {
		var out []*SelectMember
		for _, c := range r.Owner.ForeignKeyComponents(r.ForeignKey) {
			sm, err := s.AddMember(joinPath(r.Prefix, c.Expression()))
			if err != nil {
				return nil, err
			}
			out = append(out, sm...)
		}
		return out, nil
	}
	return []*SelectMember{s.project(r)}, nil
}

func (s *Select) project(r resolved) *SelectMember {
	full := r.Path()
	if existing := s.FindMember(full); existing != nil {
		return existing
	}
	sm := &SelectMember{
		Member:    r.Member,
		TypeAlias: r.Alias,
		Prefix:    r.Prefix,
		Alias:     strings.ReplaceAll(full, ".", "_"),
	}
	if j := s.Join(r.Alias); j != nil {
		j.Members = append(j.Members, sm)
	} else {
		s.Members = append(s.Members, sm)
	}
	return sm
}

// AddMembers 依次投影多个路径
func (s *Select) AddMembers(paths ...string) error {
	for _, p := range paths {
		if _, err := s.AddMember(p); err != nil {
			return err
		}
	}
	return nil
}

// Ref 解析路径为成员引用（必要时补建连接）
func (s *Select) Ref(path string) (MemberRef, error) {
	r, err := s.resolve(path)
	if err != nil {
		return MemberRef{}, err
	}
	if r.Member == nil {
		return MemberRef{}, mappingErrorf("%q is a foreign key of %s, compare it with ForeignKeyFilter", path, r.Owner)
	}
	return MemberRef{Member: r.Member, TypeAlias: r.Alias, Path: path}, nil
}

// Filter 追加 path op value 条件；路径止于外键成员时按被引用对象的主键比较
func (s *Select) Filter(path string, op CompareOperator, value any) error {
	r, err := s.resolve(path)
	if err != nil {
		return err
	}
	if r.Member == nil {
		if op != Equal {
			return mappingErrorf("foreign key %q only supports equality", path)
		}
		s.Where = append(s.Where, ForeignKeyFilter{Member: path, Value: value})
		return nil
	}
	s.Where = append(s.Where, ValueCompareFilter{
		MemberRef: MemberRef{Member: r.Member, TypeAlias: r.Alias, Path: path},
		Operator:  op,
		Value:     value,
	})
	return nil
}

// AddFilter 追加已构造的条件
func (s *Select) AddFilter(filters ...Filter) {
	s.Where = append(s.Where, filters...)
}

// OrderByPath 按路径排序；同一成员已存在时只修改方向
func (s *Select) OrderByPath(path string, dir SortDirection) error {
	ref, err := s.Ref(path)
	if err != nil {
		return err
	}
	if i := s.orderIndex(ref); i >= 0 {
		s.OrderBy[i].Direction = dir
		return nil
	}
	s.OrderBy = append(s.OrderBy, OrderBy{MemberRef: ref, Direction: dir})
	return nil
}

// ToggleOrderBy 第一次按升序，之后每次对同一成员反转方向
func (s *Select) ToggleOrderBy(path string) (SortDirection, error) {
	ref, err := s.Ref(path)
	if err != nil {
		return Ascending, err
	}
	if i := s.orderIndex(ref); i >= 0 {
		s.OrderBy[i].Direction = s.OrderBy[i].Direction.Toggle()
		return s.OrderBy[i].Direction, nil
	}
	s.OrderBy = append(s.OrderBy, OrderBy{MemberRef: ref, Direction: Ascending})
	return Ascending, nil
}

func (s *Select) orderIndex(ref MemberRef) int {
	for i, o := range s.OrderBy {
		if o.Member == ref.Member && o.TypeAlias == ref.TypeAlias {
			return i
		}
	}
	return -1
}

// AddDefaultMembers 默认投影
//
// 标记为 default 的成员加主键；没有任何标记时投影 AllDataMembers 全部成员。
// 两种情况下都对外键展开一层：经左连接投影被引用类型的默认成员
// （没有标记时为其本级非主键成员）。
func (s *Select) AddDefaultMembers() error {
	for _, m := range defaultMembers(s.DataType) {
		if _, err := s.AddMember(m.Expression()); err != nil {
			return err
		}
	}
	for _, level := range s.DataType.BaseDataTypes() {
		for _, fk := range level.ForeignKeyMembers() {
			ref, _ := level.foreignKeyTarget(fk)
			for _, m := range referencedDefaults(ref) {
				if _, err := s.AddMember(fk + "." + m.Expression()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func defaultMembers(dt *DataType) []*DataMember {
	all := dt.AllDataMembers()
	var flagged []*DataMember
	for _, m := range all {
		if m.SelectByDefault {
			flagged = append(flagged, m)
		}
	}
	if len(flagged) == 0 {
		return all
	}
	return append(dt.PrimaryKey(), flagged...)
}

func referencedDefaults(dt *DataType) []*DataMember {
	var flagged, native []*DataMember
	for _, m := range dt.DataMembers {
		if m.Column.IsPrimaryKey {
			continue
		}
		native = append(native, m)
		if m.SelectByDefault {
			flagged = append(flagged, m)
		}
	}
	if len(flagged) > 0 {
		return flagged
	}
	return native
}

// Clone 复制查询结构（成员、连接和条件切片各自独立）
func (s *Select) Clone() *Select {
	c := &Select{DataType: s.DataType}
	for _, m := range s.Members {
		cp := *m
		c.Members = append(c.Members, &cp)
	}
	for _, j := range s.Joins {
		cj := *j
		cj.On = append([]Filter(nil), j.On...)
		cj.Members = nil
		for _, m := range j.Members {
			cp := *m
			cj.Members = append(cj.Members, &cp)
		}
		c.Joins = append(c.Joins, &cj)
	}
	c.Where = append([]Filter(nil), s.Where...)
	c.OrderBy = append([]OrderBy(nil), s.OrderBy...)
	if s.Limit != nil {
		l := *s.Limit
		c.Limit = &l
	}
	return c
}

// AggregateMember 聚合投影
type AggregateMember struct {
	MemberRef
	Function AggregateFunction
	Distinct bool
	Alias    string
}

// SelectAggregate 聚合查询
type SelectAggregate struct {
	Select
	Aggregates []AggregateMember
	GroupBy    []MemberRef
}

// NewCountSelect 基于 s 的连接与条件统计行数，不带排序与分页
func NewCountSelect(s *Select) *SelectAggregate {
	c := s.Clone()
	c.Members = nil
	for _, j := range c.Joins {
		j.Members = nil
	}
	c.OrderBy = nil
	c.Limit = nil
	return &SelectAggregate{
		Select:     *c,
		Aggregates: []AggregateMember{{Function: AggregateCount, Alias: "Count"}},
	}
}

// AddAggregate 按路径追加聚合投影
func (a *SelectAggregate) AddAggregate(path string, fn AggregateFunction, alias string) error {
	ref, err := a.Ref(path)
	if err != nil {
		return err
	}
	if alias == "" {
		alias = strings.ReplaceAll(path, ".", "_")
	}
	a.Aggregates = append(a.Aggregates, AggregateMember{MemberRef: ref, Function: fn, Alias: alias})
	return nil
}

// AddGroupBy 按路径追加分组，同时作为普通投影输出
func (a *SelectAggregate) AddGroupBy(path string) error {
	ref, err := a.Ref(path)
	if err != nil {
		return err
	}
	a.GroupBy = append(a.GroupBy, ref)
	a.Aggregates = append(a.Aggregates, AggregateMember{
		MemberRef: ref,
		Function:  AggregateNone,
		Alias:     strings.ReplaceAll(path, ".", "_"),
	})
	return nil
}
