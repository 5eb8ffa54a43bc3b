package orm

import (
	"context"
	"reflect"
)

type tableKey struct {
	t     reflect.Type
	multi bool
}

// keyedTable 以主键值访问一个类型的实例
type keyedTable struct {
	db *DataBase
	dt *DataType
}

func (t *keyedTable) get(ctx context.Context, key []any) (any, bool, error) {
	v, err := t.db.SelectByID(ctx, t.dt, key...)
	if err != nil || v == nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *keyedTable) containsKey(ctx context.Context, key []any) (bool, error) {
	where, err := keyFilter(t.dt, key)
	if err != nil {
		return false, err
	}
	return t.db.exists(ctx, t.dt, []Filter{where})
}

// withKey 把 key 写入 instance 的主键成员
func (t *keyedTable) withKey(instance any, key []any) error {
	pk := t.dt.PrimaryKey()
	if len(pk) != len(key) {
		return mappingErrorf("%s has %d primary key members, got %d values", t.dt, len(pk), len(key))
	}
	for i, m := range pk {
		if err := m.Member.Set(instance, key[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *keyedTable) set(ctx context.Context, key []any, instance any) error {
	if err := t.withKey(instance, key); err != nil {
		return err
	}
	ok, err := t.containsKey(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return t.db.UpdateObject(ctx, instance)
	}
	return t.db.InsertObject(ctx, instance)
}

func (t *keyedTable) remove(ctx context.Context, key []any) (bool, error) {
	ok, err := t.containsKey(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	inst := t.dt.New()
	if err := t.withKey(inst, key); err != nil {
		return false, err
	}
	return true, t.db.DeleteObject(ctx, inst)
}

// keys 只投影主键列
func (t *keyedTable) keys(ctx context.Context, fn func(key []any) bool) error {
	s := &Select{DataType: t.dt}
	pk := t.dt.PrimaryKey()
	for _, m := range pk {
		if _, err := s.AddMember(m.Expression()); err != nil {
			return err
		}
	}
	rows, err := t.db.Select(ctx, s)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if !fn(keyOf(pk, rows.Instance())) {
			return nil
		}
	}
	return rows.Err()
}

func (t *keyedTable) rangeAll(ctx context.Context, fn func(key []any, instance any) bool) error {
	rows, err := t.db.Select(ctx, &Select{DataType: t.dt})
	if err != nil {
		return err
	}
	defer rows.Close()
	pk := t.dt.PrimaryKey()
	for rows.Next() {
		inst := rows.Instance()
		if !fn(keyOf(pk, inst), inst) {
			return nil
		}
	}
	return rows.Err()
}

func (t *keyedTable) len(ctx context.Context) (int64, error) {
	return t.db.Count(ctx, &Select{DataType: t.dt})
}

func keyOf(pk []*DataMember, instance any) []any {
	key := make([]any, len(pk))
	for i, m := range pk {
		key[i], _ = m.Member.Get(instance)
	}
	return key
}

// Table 单一主键类型 T 的字典视图
//
// 与所属 DataBase 一样不是并发安全的。
type Table[K comparable, T any] struct {
	keyedTable
}

// OpenTable 打开 T 的字典视图，同一 DataBase 内缓存复用
//
// T 必须只有一个主键成员，且其类型为 K。
func OpenTable[K comparable, T any](d *DataBase) (*Table[K, T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := d.tables[tableKey{t: rt}].(*Table[K, T]); ok {
		return cached, nil
	}
	dt, err := d.registry.GetMap(rt)
	if err != nil {
		return nil, err
	}
	pk := dt.PrimaryKey()
	if len(pk) != 1 {
		return nil, mappingErrorf("%s has %d primary key members, use OpenMultipleKeyTable", dt, len(pk))
	}
	if kt := reflect.TypeOf((*K)(nil)).Elem(); pk[0].Member.Type() != kt {
		return nil, mappingErrorf("primary key of %s is %s, not %s", dt, pk[0].Member.Type(), kt)
	}
	t := &Table[K, T]{keyedTable{db: d, dt: dt}}
	d.tables[tableKey{t: rt}] = t
	return t, nil
}

// DataType 视图对应的类型
func (t *Table[K, T]) DataType() *DataType { return t.dt }

// Get 按主键读取
func (t *Table[K, T]) Get(ctx context.Context, key K) (*T, bool, error) {
	v, ok, err := t.get(ctx, []any{key})
	if !ok {
		return nil, false, err
	}
	return v.(*T), true, nil
}

// Set 以 key 保存 value：存在则更新，否则插入
func (t *Table[K, T]) Set(ctx context.Context, key K, value *T) error {
	return t.set(ctx, []any{key}, value)
}

// Add 插入 value，自增主键写回 value
func (t *Table[K, T]) Add(ctx context.Context, value *T) error {
	return t.db.InsertObject(ctx, value)
}

// ContainsKey 只查询主键列
func (t *Table[K, T]) ContainsKey(ctx context.Context, key K) (bool, error) {
	return t.containsKey(ctx, []any{key})
}

// Remove 删除 key 对应的实例，返回是否存在
func (t *Table[K, T]) Remove(ctx context.Context, key K) (bool, error) {
	return t.remove(ctx, []any{key})
}

// Keys 全部主键
func (t *Table[K, T]) Keys(ctx context.Context) ([]K, error) {
	var out []K
	err := t.keys(ctx, func(key []any) bool {
		k, _ := key[0].(K)
		out = append(out, k)
		return true
	})
	return out, err
}

// Range 逐个读取主键与实例，fn 返回 false 时停止并关闭游标
func (t *Table[K, T]) Range(ctx context.Context, fn func(key K, value *T) bool) error {
	return t.rangeAll(ctx, func(key []any, instance any) bool {
		k, _ := key[0].(K)
		return fn(k, instance.(*T))
	})
}

// Len 行数
func (t *Table[K, T]) Len(ctx context.Context) (int64, error) { return t.len(ctx) }

// MultipleKeyTable 复合主键类型 T 的字典视图，键按主键成员顺序给出
type MultipleKeyTable[T any] struct {
	keyedTable
}

// OpenMultipleKeyTable 打开 T 的复合键字典视图
func OpenMultipleKeyTable[T any](d *DataBase) (*MultipleKeyTable[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := d.tables[tableKey{t: rt, multi: true}].(*MultipleKeyTable[T]); ok {
		return cached, nil
	}
	dt, err := d.registry.GetMap(rt)
	if err != nil {
		return nil, err
	}
	if len(dt.PrimaryKey()) == 0 {
		return nil, mappingErrorf("type %s has no primary key", dt)
	}
	t := &MultipleKeyTable[T]{keyedTable{db: d, dt: dt}}
	d.tables[tableKey{t: rt, multi: true}] = t
	return t, nil
}

// DataType 视图对应的类型
func (t *MultipleKeyTable[T]) DataType() *DataType { return t.dt }

func (t *MultipleKeyTable[T]) Get(ctx context.Context, key ...any) (*T, bool, error) {
	v, ok, err := t.get(ctx, key)
	if !ok {
		return nil, false, err
	}
	return v.(*T), true, nil
}

func (t *MultipleKeyTable[T]) Set(ctx context.Context, value *T, key ...any) error {
	return t.set(ctx, key, value)
}

func (t *MultipleKeyTable[T]) Add(ctx context.Context, value *T) error {
	return t.db.InsertObject(ctx, value)
}

func (t *MultipleKeyTable[T]) ContainsKey(ctx context.Context, key ...any) (bool, error) {
	return t.containsKey(ctx, key)
}

func (t *MultipleKeyTable[T]) Remove(ctx context.Context, key ...any) (bool, error) {
	return t.remove(ctx, key)
}

func (t *MultipleKeyTable[T]) Keys(ctx context.Context) ([][]any, error) {
	var out [][]any
	err := t.keys(ctx, func(key []any) bool {
		out = append(out, key)
		return true
	})
	return out, err
}

func (t *MultipleKeyTable[T]) Range(ctx context.Context, fn func(key []any, value *T) bool) error {
	return t.rangeAll(ctx, func(key []any, instance any) bool {
		return fn(key, instance.(*T))
	})
}

func (t *MultipleKeyTable[T]) Len(ctx context.Context) (int64, error) { return t.len(ctx) }
