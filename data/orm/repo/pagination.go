package repo

import (
	"context"
	"math"
	"sort"
	"strings"

	"relmap/data/orm"
	"relmap/errors"
)

// ListPage 按选项过滤、排序并返回一页；Total 为过滤后的总行数
func (r *Repo[T]) ListPage(ctx context.Context, options *QueryOptions) (*PagedResult[T], error) {
	if options == nil {
		options = &QueryOptions{}
	}
	s := &orm.Select{DataType: r.dt}
	if err := applyFilters(s, options.Filters); err != nil {
		return nil, err
	}

	total, err := r.db.Count(ctx, s)
	if err != nil {
		return nil, err
	}

	if err := r.applySorting(s, options.Sorts); err != nil {
		return nil, err
	}
	if len(options.Fields) > 0 {
		for _, f := range options.Fields {
			if _, err := memberRef(s, f); err != nil {
				return nil, err
			}
		}
		if err := s.AddMembers(options.Fields...); err != nil {
			return nil, err
		}
	}

	page := options.Page
	if page < 1 {
		page = 1
	}
	size := options.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	s.Limit = orm.Page(page-1, size)

	rows, err := r.db.Select(ctx, s)
	if err != nil {
		return nil, err
	}
	data, err := orm.Collect[T](rows)
	if err != nil {
		return nil, err
	}
	return &PagedResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: int(math.Ceil(float64(total) / float64(size))),
	}, nil
}

// Find 按过滤条件返回全部匹配实体
func (r *Repo[T]) Find(ctx context.Context, filters map[string]string) ([]*T, error) {
	s := &orm.Select{DataType: r.dt}
	if err := applyFilters(s, filters); err != nil {
		return nil, err
	}
	rows, err := r.db.Select(ctx, s)
	if err != nil {
		return nil, err
	}
	return orm.Collect[T](rows)
}

// Count 按过滤条件统计
func (r *Repo[T]) Count(ctx context.Context, filters map[string]string) (int64, error) {
	s := &orm.Select{DataType: r.dt}
	if err := applyFilters(s, filters); err != nil {
		return 0, err
	}
	return r.db.Count(ctx, s)
}

// applySorting 没有排序项时按主键升序，保证分页稳定
func (r *Repo[T]) applySorting(s *orm.Select, sorts []Sort) error {
	if len(sorts) == 0 {
		for _, m := range r.dt.PrimaryKey() {
			if err := s.OrderByPath(m.Expression(), orm.Ascending); err != nil {
				return err
			}
		}
		return nil
	}
	for _, o := range sorts {
		if !o.Direction.IsValid() {
			return errors.NewInvalidInput(o.Field, "invalid sort direction %q", o.Direction)
		}
		if _, err := memberRef(s, o.Field); err != nil {
			return err
		}
		dir := orm.Ascending
		if strings.EqualFold(string(o.Direction), string(DESC)) {
			dir = orm.Descending
		}
		if err := s.OrderByPath(o.Field, dir); err != nil {
			return err
		}
	}
	return nil
}

// 长后缀在前，_not_in 先于 _in
var filterSuffixes = []struct {
	suffix string
	build  func(ref orm.MemberRef, text string) (orm.Filter, error)
}{
	{"_not_in", func(ref orm.MemberRef, text string) (orm.Filter, error) { return inFilter(ref, text, true) }},
	{"_like", func(ref orm.MemberRef, text string) (orm.Filter, error) {
		return orm.LikeFilter{MemberRef: ref, Pattern: "%" + text + "%"}, nil
	}},
	{"_gte", compare(orm.GreaterThanOrEqual)},
	{"_lte", compare(orm.LessThanOrEqual)},
	{"_gt", compare(orm.GreaterThan)},
	{"_lt", compare(orm.LessThan)},
	{"_ne", compare(orm.NotEqual)},
	{"_in", func(ref orm.MemberRef, text string) (orm.Filter, error) { return inFilter(ref, text, false) }},
}

func compare(op orm.CompareOperator) func(orm.MemberRef, string) (orm.Filter, error) {
	return func(ref orm.MemberRef, text string) (orm.Filter, error) {
		v, err := parseValue(ref, text)
		if err != nil {
			return nil, err
		}
		return orm.ValueCompareFilter{MemberRef: ref, Operator: op, Value: v}, nil
	}
}

func inFilter(ref orm.MemberRef, text string, negate bool) (orm.Filter, error) {
	parts := strings.Split(text, ",")
	values := make([]any, 0, len(parts))
	for _, p := range parts {
		v, err := parseValue(ref, strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return orm.InFilter{MemberRef: ref, Values: values, Negate: negate}, nil
}

func parseValue(ref orm.MemberRef, text string) (any, error) {
	v, err := ref.Member.ParseValue(text)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInvalidInput, "invalid value").WithDetail("field", ref.Path)
	}
	return v, nil
}

// applyFilters 将 map 过滤条件转换为成员条件，按键排序以得到稳定的查询文本
func applyFilters(s *orm.Select, filters map[string]string) error {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		text := filters[key]
		field, build := key, compare(orm.Equal)
		for _, fs := range filterSuffixes {
			if f, ok := strings.CutSuffix(key, fs.suffix); ok {
				field, build = f, fs.build
				break
			}
		}
		ref, err := memberRef(s, field)
		if err != nil {
			return err
		}
		f, err := build(ref, text)
		if err != nil {
			return err
		}
		s.AddFilter(f)
	}
	return nil
}
