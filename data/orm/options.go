package orm

import "strings"

// SelectOption 配置 Select
type SelectOption func(*Select) error

// WithMembers 按路径投影成员
func WithMembers(paths ...string) SelectOption {
	return func(s *Select) error {
		return s.AddMembers(paths...)
	}
}

// WithDefaultMembers 立即按默认策略投影
func WithDefaultMembers() SelectOption {
	return func(s *Select) error {
		return s.AddDefaultMembers()
	}
}

// WithWhere 追加 path op value 条件
func WithWhere(path string, op CompareOperator, value any) SelectOption {
	return func(s *Select) error {
		return s.Filter(path, op, value)
	}
}

// WithFilter 追加已构造的条件
func WithFilter(filters ...Filter) SelectOption {
	return func(s *Select) error {
		s.AddFilter(filters...)
		return nil
	}
}

// WithJoin 确保到外键路径 path 的左连接存在，不投影成员
func WithJoin(path string) SelectOption {
	return func(s *Select) error {
		r, err := s.resolve(path)
		if err != nil {
			return err
		}
		if r.Member != nil {
			return mappingErrorf("%q is not a foreign key of %s", path, s.DataType)
		}
		ref, _ := r.Owner.foreignKeyTarget(r.ForeignKey)
		prefix := joinPath(r.Prefix, r.ForeignKey)
		s.foreignKeyJoin(r.Alias, r.Owner, r.ForeignKey, ref, strings.ReplaceAll(prefix, ".", "_"), prefix)
		return nil
	}
}

// WithOrderBy 追加排序
func WithOrderBy(path string, dir SortDirection) SelectOption {
	return func(s *Select) error {
		return s.OrderByPath(path, dir)
	}
}

// WithLimit 设置分页区间 [from, to)
func WithLimit(from, to int) SelectOption {
	return func(s *Select) error {
		if to < from {
			return mappingErrorf("invalid limit [%d, %d)", from, to)
		}
		s.Limit = &SelectLimit{From: from, To: to}
		return nil
	}
}
