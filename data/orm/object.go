package orm

import (
	"context"
	"reflect"
	"strings"
)

// objectType 实例（必须是指针）对应的 DataType
func (d *DataBase) objectType(instance any) (*DataType, error) {
	rv := reflect.ValueOf(instance)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, mappingErrorf("instance must be a non-nil pointer, got %T", instance)
	}
	return d.registry.GetMap(rv.Type())
}

// rootKey 最远基类型的主键成员
func rootKey(dt *DataType) []*DataMember {
	levels := dt.BaseDataTypes()
	return levels[len(levels)-1].PrimaryKey()
}

// InsertObject 插入实例：先整体校验，再从最远基类型到自身逐级插入
//
// 自增主键在根级插入后经 LastAutogeneratedID 取回并写入实例，子级因此拿到同一主键。
func (d *DataBase) InsertObject(ctx context.Context, instance any) error {
	dt, err := d.objectType(instance)
	if err != nil {
		return err
	}
	if errs := dt.Validate(instance); len(errs) > 0 {
		return errs
	}
	if err := d.assignKey(dt, instance); err != nil {
		return err
	}
	levels := dt.BaseDataTypes()
	for i := len(levels) - 1; i >= 0; i-- {
		level := levels[i]
		auto := autoNumberMember(level)
		pending := auto != nil && !level.IsSaved(instance)
		n, err := d.Insert(ctx, &Insert{DataType: level, Instance: instance})
		if err != nil {
			return err
		}
		if pending && n > 0 {
			id, err := d.executor.GetScalar(ctx, d.generator.LastAutogeneratedID(level.Table))
			if err != nil {
				return err
			}
			if err := auto.SetValueFromColumn(instance, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func autoNumberMember(dt *DataType) *DataMember {
	for _, m := range dt.PrimaryKey() {
		if m.Column.IsAutoNumber {
			return m
		}
	}
	return nil
}

// assignKey 根主键为空且不自增时由 key 生成器填充
func (d *DataBase) assignKey(dt *DataType, instance any) error {
	pk := rootKey(dt)
	if d.keys == nil || len(pk) != 1 || pk[0].Column.IsAutoNumber {
		return nil
	}
	m := pk[0]
	if v, ok := m.Member.Get(instance); ok && !isZeroValue(v) {
		return nil
	}
	key, ok, err := d.keys.NextKey(m.Member.Type())
	if err != nil || !ok {
		return err
	}
	return m.Member.Set(instance, key)
}

// UpdateObject 逐级按主键更新实例，跳过没有非主键成员的级别
func (d *DataBase) UpdateObject(ctx context.Context, instance any) error {
	dt, err := d.objectType(instance)
	if err != nil {
		return err
	}
	if errs := dt.Validate(instance); len(errs) > 0 {
		return errs
	}
	levels := dt.BaseDataTypes()
	for i := len(levels) - 1; i >= 0; i-- {
		level := levels[i]
		if len(level.DataMembers) == len(level.PrimaryKey()) {
			continue
		}
		if _, err := d.Update(ctx, &Update{DataType: level, Instance: instance}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteObject 从自身到最远基类型逐级按主键删除
func (d *DataBase) DeleteObject(ctx context.Context, instance any) error {
	dt, err := d.objectType(instance)
	if err != nil {
		return err
	}
	for _, level := range dt.BaseDataTypes() {
		pk, err := PrimaryKeyFilter(level, instance)
		if err != nil {
			return err
		}
		if _, err := d.Delete(ctx, &Delete{DataType: level, Where: []Filter{pk}}); err != nil {
			return err
		}
	}
	return nil
}

// Save 未保存时插入，否则更新
func (d *DataBase) Save(ctx context.Context, instance any) error {
	dt, err := d.objectType(instance)
	if err != nil {
		return err
	}
	if dt.IsSaved(instance) {
		return d.UpdateObject(ctx, instance)
	}
	return d.InsertObject(ctx, instance)
}

// IsSaved 实例主键是否都已有值
func (d *DataBase) IsSaved(instance any) (bool, error) {
	dt, err := d.objectType(instance)
	if err != nil {
		return false, err
	}
	return dt.IsSaved(instance), nil
}

// InsertAll 递归插入：先插入未保存的外键对象，再插入自身，最后插入集合中未保存的元素
func (d *DataBase) InsertAll(ctx context.Context, instance any) error {
	return d.insertAll(ctx, instance, make(map[any]bool))
}

func (d *DataBase) insertAll(ctx context.Context, instance any, seen map[any]bool) error {
	if seen[instance] {
		return nil
	}
	seen[instance] = true
	dt, err := d.objectType(instance)
	if err != nil {
		return err
	}
	for _, level := range dt.BaseDataTypes() {
		for _, fk := range level.ForeignKeyMembers() {
			ref, ok := foreignObject(instance, fk)
			if !ok {
				continue
			}
			// 外键列经成员路径读取引用对象的主键，引用对象插入后自然取得新值
			if err := d.insertAll(ctx, ref, seen); err != nil {
				return err
			}
		}
	}
	if !dt.IsSaved(instance) {
		if err := d.InsertObject(ctx, instance); err != nil {
			return err
		}
	}
	for _, item := range collectionItems(d.registry, instance) {
		if err := d.insertAll(ctx, item, seen); err != nil {
			return err
		}
	}
	return nil
}

// foreignObject 外键成员引用的对象指针；引用为 nil 时返回 false
func foreignObject(instance any, member string) (any, bool) {
	f := reflect.ValueOf(instance).Elem().FieldByName(member)
	if !f.IsValid() {
		return nil, false
	}
	var ptr any
	switch {
	case f.Kind() == reflect.Pointer:
		if f.IsNil() {
			return nil, false
		}
		ptr = f.Interface()
	case f.CanAddr():
		ptr = f.Addr().Interface()
	default:
		return nil, false
	}
	return ptr, true
}

// collectionItems 实例上元素类型已映射的切片成员中的全部元素（指针）
func collectionItems(r *Registry, instance any) []any {
	v := reflect.ValueOf(instance).Elem()
	var out []any
	for _, sf := range reflect.VisibleFields(v.Type()) {
		if !sf.IsExported() || sf.Anonymous || !isCollectionOfMapped(r, sf.Type) {
			continue
		}
		fv, err := v.FieldByIndexErr(sf.Index)
		if err != nil {
			continue
		}
		for i := 0; i < fv.Len(); i++ {
			item := fv.Index(i)
			if item.Kind() == reflect.Pointer {
				if !item.IsNil() {
					out = append(out, item.Interface())
				}
				continue
			}
			if item.CanAddr() {
				out = append(out, item.Addr().Interface())
			}
		}
	}
	return out
}

// Load 按实例主键读取并覆盖实例成员；不存在时返回 false
func (d *DataBase) Load(ctx context.Context, instance any) (bool, error) {
	dt, err := d.objectType(instance)
	if err != nil {
		return false, err
	}
	pk, err := PrimaryKeyFilter(dt, instance)
	if err != nil {
		return false, err
	}
	s := &Select{DataType: dt, Where: []Filter{pk}, Limit: NewSelectLimit(0, 1)}
	rows, err := d.Select(ctx, s)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return false, rows.Err()
	}
	reflect.ValueOf(instance).Elem().Set(reflect.ValueOf(rows.Instance()).Elem())
	return true, nil
}

// Exists 以主键探测实例是否存在，只查询主键列
func (d *DataBase) Exists(ctx context.Context, dt *DataType, instance any) (bool, error) {
	pk, err := PrimaryKeyFilter(dt, instance)
	if err != nil {
		return false, err
	}
	return d.exists(ctx, dt, []Filter{pk})
}

func (d *DataBase) exists(ctx context.Context, dt *DataType, where []Filter) (bool, error) {
	s := &Select{DataType: dt, Where: where, Limit: NewSelectLimit(0, 1)}
	for _, m := range dt.PrimaryKey() {
		if _, err := s.AddMember(m.Expression()); err != nil {
			return false, err
		}
	}
	rows, err := d.Select(ctx, s)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

// SelectByID 按主键值查询单个实例，不存在时返回 nil
func (d *DataBase) SelectByID(ctx context.Context, dt *DataType, key ...any) (any, error) {
	where, err := keyFilter(dt, key)
	if err != nil {
		return nil, err
	}
	s := &Select{DataType: dt, Where: []Filter{where}, Limit: NewSelectLimit(0, 1)}
	rows, err := d.Select(ctx, s)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if rows.Next() {
		return rows.Instance(), nil
	}
	return nil, rows.Err()
}

// SelectBy 按成员路径等于 value 查询
func (d *DataBase) SelectBy(ctx context.Context, dt *DataType, path string, value any) (*Rows, error) {
	s := &Select{DataType: dt}
	if err := s.Filter(path, Equal, value); err != nil {
		return nil, err
	}
	return d.Select(ctx, s)
}

// SelectAllOf 类型的全部实例（默认成员）
func (d *DataBase) SelectAllOf(ctx context.Context, dt *DataType) (*Rows, error) {
	return d.Select(ctx, &Select{DataType: dt})
}

// LoadCollection 读取实例的集合成员：元素类型中引用实例类型的外键等于实例
//
// 元素类型有多个这样的外键时必须以 fkMember 指明，否则返回映射错误。
func (d *DataBase) LoadCollection(ctx context.Context, instance any, member string, fkMember ...string) error {
	dt, err := d.objectType(instance)
	if err != nil {
		return err
	}
	field, ok := reflect.TypeOf(instance).Elem().FieldByName(member)
	if !ok || !isCollectionOfMapped(d.registry, field.Type) {
		return mappingErrorf("%s.%s is not a collection of a mapped type", dt, member)
	}
	elem := field.Type.Elem()
	itemType := d.registry.lookup(indirectType(elem))

	fk, err := collectionForeignKey(itemType, dt, fkMember)
	if err != nil {
		return err
	}
	s := &Select{DataType: itemType, Where: []Filter{ForeignKeyFilter{Member: fk, Value: instance}}}
	rows, err := d.Select(ctx, s)
	if err != nil {
		return err
	}
	defer rows.Close()

	slice := reflect.MakeSlice(field.Type, 0, 0)
	for rows.Next() {
		item := reflect.ValueOf(rows.Instance())
		if elem.Kind() != reflect.Pointer {
			item = item.Elem()
		}
		slice = reflect.Append(slice, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	reflect.ValueOf(instance).Elem().FieldByIndex(field.Index).Set(slice)
	return nil
}

// collectionForeignKey 元素类型中引用 owner（或其基类型）的外键成员
func collectionForeignKey(item, owner *DataType, explicit []string) (string, error) {
	if len(explicit) > 0 && explicit[0] != "" {
		level, ref := foreignKeyLevel(item, explicit[0])
		if level == nil || (ref != owner && !owner.IsSubTypeOf(ref)) {
			return "", mappingErrorf("%s.%s does not reference %s", item, explicit[0], owner)
		}
		return explicit[0], nil
	}
	var candidates []string
	for _, level := range item.BaseDataTypes() {
		for _, fk := range level.ForeignKeyMembers() {
			ref, _ := level.foreignKeyTarget(fk)
			if ref == owner || owner.IsSubTypeOf(ref) {
				candidates = append(candidates, fk)
			}
		}
	}
	switch len(candidates) {
	case 0:
		return "", mappingErrorf("%s has no foreign key referencing %s", item, owner)
	case 1:
		return candidates[0], nil
	default:
		return "", mappingErrorf("ambiguous foreign key from %s to %s: %s", item, owner, strings.Join(candidates, ", "))
	}
}

// CreateSearch 对给定成员（为空时取全部字符串成员）构造 LIKE %text% 的 OR 条件
func CreateSearch(dt *DataType, text string, members ...string) (Filter, error) {
	var refs []*DataMember
	if len(members) == 0 {
		for _, m := range dt.AllDataMembers() {
			if m.Member.Type().Kind() == reflect.String && m.Converter == nil {
				refs = append(refs, m)
			}
		}
	} else {
		for _, path := range members {
			m := dt.FindMember(path)
			if m == nil {
				return nil, mappingErrorf("%s has no member %q", dt, path)
			}
			refs = append(refs, m)
		}
	}
	if len(refs) == 0 {
		return nil, mappingErrorf("%s has no searchable member", dt)
	}
	pattern := "%" + text + "%"
	or := Or()
	for _, m := range refs {
		or.Filters = append(or.Filters, LikeFilter{MemberRef: Ref(m), Pattern: pattern})
	}
	return or, nil
}
