package orm

import (
	"strings"
)

// resolved 成员路径在某个查询中的解析结果
type resolved struct {
	// Member 为 nil 时路径止于外键成员本身，ForeignKey 为其名称
	Member     *DataMember
	ForeignKey string
	Owner      *DataType
	// Alias 成员列所在的类型别名，根类型为 ""
	Alias string
	// Prefix 成员所属对象相对根实例的路径，根对象为 ""
	Prefix string
}

// Path 根实例上的完整成员路径
func (r resolved) Path() string {
	expr := r.ForeignKey
	if r.Member != nil {
		expr = r.Member.Expression()
	}
	if r.Prefix == "" {
		return expr
	}
	return r.Prefix + "." + expr
}

// resolve 逐段解析路径：
//  1. 余下的路径是当前类型（或其基类型）的成员：必要时补建基类型内连接，结束；
//  2. 当前段是外键成员：若是最后一段则结束，否则建立（或复用）左连接，进入被引用类型。
//
// 连接按路径前缀命名，重复解析同一路径复用已有连接。
func (s *Select) resolve(path string) (resolved, error) {
	if strings.TrimSpace(path) == "" {
		return resolved{}, mappingErrorf("empty member path on %s", s.DataType)
	}
	segments := strings.Split(path, ".")
	cur, alias, prefix := s.DataType, "", ""
	joinType := InnerJoin

	for i := 0; i < len(segments); i++ {
		rest := strings.Join(segments[i:], ".")
		for _, level := range cur.BaseDataTypes() {
			if m := level.Member(rest); m != nil {
				owner := s.baseJoin(alias, cur, level, joinType)
				return resolved{Member: m, Owner: level, Alias: owner, Prefix: prefix}, nil
			}
		}

		seg := segments[i]
		level, ref := foreignKeyLevel(cur, seg)
		if level == nil {
			return resolved{}, mappingErrorf("%s has no member %q (in path %q)", cur, rest, path)
		}
		owner := s.baseJoin(alias, cur, level, joinType)
		if i == len(segments)-1 {
			return resolved{ForeignKey: seg, Owner: level, Alias: owner, Prefix: prefix}, nil
		}

		prefix = joinPath(prefix, seg)
		alias = strings.ReplaceAll(prefix, ".", "_")
		s.foreignKeyJoin(owner, level, seg, ref, alias, prefix)
		cur, joinType = ref, LeftJoin
	}
	return resolved{}, mappingErrorf("cannot resolve %q on %s", path, s.DataType)
}

// foreignKeyLevel 在 dt 及其基类型中查找名为 member 的外键
func foreignKeyLevel(dt *DataType, member string) (*DataType, *DataType) {
	for _, level := range dt.BaseDataTypes() {
		if ref, ok := level.foreignKeyTarget(member); ok {
			return level, ref
		}
	}
	return nil, nil
}

func joinPath(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}

// baseJoin 从 from 逐级连接到基类型 to，返回 to 的别名
//
// 别名为 {Base}_base，在连接的对象内部加上该对象别名前缀。
// 所属对象经左连接引入时基类型也用左连接。
func (s *Select) baseJoin(alias string, from, to *DataType, joinType JoinType) string {
	if from == to {
		return alias
	}
	prev, prevAlias := from, alias
	for b := from.BaseDataType(); b != nil; b = b.BaseDataType() {
		name := b.Name() + "_base"
		if alias != "" {
			name = alias + "_" + name
		}
		if s.Join(name) == nil {
			j := &SelectJoin{Type: joinType, DataType: b, Alias: name, prefix: s.prefixOf(alias)}
			lpk, rpk := prev.PrimaryKey(), b.PrimaryKey()
			for i := range lpk {
				j.On = append(j.On, MemberCompareFilter{
					MemberRef: MemberRef{Member: lpk[i], TypeAlias: prevAlias},
					Operator:  Equal,
					Other:     MemberRef{Member: rpk[i], TypeAlias: name},
				})
			}
			s.Joins = append(s.Joins, j)
		}
		if b == to {
			return name
		}
		prev, prevAlias = b, name
	}
	return alias
}

// foreignKeyJoin 左连接外键引用的类型，按被引用主键逐列相等
func (s *Select) foreignKeyJoin(ownerAlias string, owner *DataType, member string, ref *DataType, alias, prefix string) {
	if s.Join(alias) != nil {
		return
	}
	j := &SelectJoin{Type: LeftJoin, DataType: ref, Alias: alias, prefix: prefix}
	for _, p := range ref.PrimaryKey() {
		local := owner.Member(member + "." + p.Expression())
		j.On = append(j.On, MemberCompareFilter{
			MemberRef: MemberRef{Member: local, TypeAlias: ownerAlias},
			Operator:  Equal,
			Other:     MemberRef{Member: p, TypeAlias: alias},
		})
	}
	s.Joins = append(s.Joins, j)
}

// prefixOf 别名对应对象的路径
func (s *Select) prefixOf(alias string) string {
	if alias == "" {
		return ""
	}
	if j := s.Join(alias); j != nil {
		return j.prefix
	}
	return ""
}
