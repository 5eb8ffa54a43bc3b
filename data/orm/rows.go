package orm

import (
	"context"
	"reflect"

	"relmap/data/db"
)

// Rows 惰性只进的查询结果
//
// 每次 Next 读取一行并物化为新的实例；多态查询的各结果集按子查询顺序读取，
// 每行物化为产生它的子查询的类型。使用完毕必须 Close。
type Rows struct {
	reader  db.IDataReader
	selects []*Select
	index   int
	current any
	err     error
	closed  bool

	prefixes map[string]*MemberExpression
}

func newRows(reader db.IDataReader, selects []*Select) *Rows {
	return &Rows{reader: reader, selects: selects, prefixes: make(map[string]*MemberExpression)}
}

func emptyRows() *Rows { return &Rows{closed: true} }

// Next 前进到下一行
func (r *Rows) Next() bool {
	if r.closed || r.err != nil || r.reader == nil {
		return false
	}
	for {
		if r.reader.Next() {
			inst, err := r.materialize(r.selects[r.index], r.reader.Record())
			if err != nil {
				r.err = err
				return false
			}
			r.current = inst
			return true
		}
		if err := r.reader.Err(); err != nil {
			r.err = err
			return false
		}
		if r.index+1 >= len(r.selects) || !r.reader.NextResult() {
			r.current = nil
			return false
		}
		r.index++
	}
}

// Instance 当前行物化出的实例（指针）
func (r *Rows) Instance() any { return r.current }

// DataType 当前行的类型
func (r *Rows) DataType() *DataType {
	if r.index < len(r.selects) {
		return r.selects[r.index].DataType
	}
	return nil
}

// Err 读取或物化过程中的错误
func (r *Rows) Err() error { return r.err }

// Close 关闭底层读取器，可重复调用
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

// materialize 新建实例并逐个投影成员赋值
//
// 结果列按成员别名读取，找不到时退回列名；空值不赋值。
// 连接对象的成员写入根实例上 Prefix 指向的对象，途中的 nil 指针按需分配，
// 因此左连接没有匹配时引用保持为 nil。
func (r *Rows) materialize(s *Select, rec db.Record) (any, error) {
	inst := s.DataType.New()
	for _, m := range s.AllMembers() {
		if !m.Member.Member.CanWrite() {
			continue
		}
		value, ok := rec[m.Alias]
		if !ok {
			value = rec[m.Member.Column.Name]
		}
		if value == nil {
			continue
		}
		target, err := r.target(s, inst, m.Prefix)
		if err != nil {
			return nil, err
		}
		if err := m.Member.SetValueFromColumn(target, value); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (r *Rows) target(s *Select, inst any, prefix string) (any, error) {
	if prefix == "" {
		return inst, nil
	}
	key := s.DataType.InnerType.String() + ":" + prefix
	pe, ok := r.prefixes[key]
	if !ok {
		var err error
		if pe, err = NewMemberExpression(s.DataType.InnerType, prefix); err != nil {
			return nil, err
		}
		r.prefixes[key] = pe
	}
	v, ok := pe.Addr(inst)
	if !ok || !deref(&v, true) || !v.CanAddr() {
		return nil, mappingErrorf("cannot reach %s on %s", prefix, s.DataType)
	}
	return v.Addr().Interface(), nil
}

// Collect 读取全部行并关闭 rows；行类型必须是 T
func Collect[T any](rows *Rows) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		v, ok := rows.Instance().(*T)
		if !ok {
			return nil, mappingErrorf("row of type %T is not %s", rows.Instance(), reflect.TypeOf((*T)(nil)).Elem())
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CollectAll 读取全部行并关闭 rows，保留各行的实际类型
func CollectAll(rows *Rows) ([]any, error) {
	defer rows.Close()
	var out []any
	for rows.Next() {
		out = append(out, rows.Instance())
	}
	return out, rows.Err()
}

// SelectAll 执行查询并读取全部 T
func SelectAll[T any](ctx context.Context, d *DataBase, opts ...SelectOption) ([]*T, error) {
	dt, err := TypeFor[T](d.registry)
	if err != nil {
		return nil, err
	}
	s, err := NewSelect(dt, opts...)
	if err != nil {
		return nil, err
	}
	rows, err := d.Select(ctx, s)
	if err != nil {
		return nil, err
	}
	return Collect[T](rows)
}
