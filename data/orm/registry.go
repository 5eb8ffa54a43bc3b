package orm

import (
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"

	dbsql "relmap/data/db/sql"
	"relmap/data/orm/convert"
	"relmap/data/schema"
	"relmap/validation"
)

// Registry 类型到 DataType 的注册表
//
// 映射阶段可变；Seal 之后只读，可被多个 DataBase 并发共享。
type Registry struct {
	mu     sync.RWMutex
	types  map[reflect.Type]*DataType
	order  []*DataType
	sealed bool
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{types: make(map[reflect.Type]*DataType)}
}

var uuidType = reflect.TypeOf(uuid.UUID{})

// typeOf 接受 T、*T 或 reflect.Type
func typeOf(sample any) (reflect.Type, error) {
	if sample == nil {
		return nil, mappingErrorf("type is required")
	}
	t, ok := sample.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(sample)
	}
	t = indirectType(t)
	if t.Kind() != reflect.Struct {
		return nil, mappingErrorf("%s is not a struct type", t)
	}
	return t, nil
}

// Map 注册类型；table 为 nil 时按类型名建表并只映射主键
func (r *Registry) Map(sample any, table *schema.Table) (*DataType, error) {
	t, err := typeOf(sample)
	if err != nil {
		return nil, err
	}
	created := table == nil
	if created {
		table = schema.NewTable(tableNameOf(t))
	}
	dt, err := r.register(t, table)
	if err != nil {
		return nil, err
	}
	if created {
		if err := r.mapPrimaryKey(dt); err != nil {
			return nil, err
		}
	}
	return dt, nil
}

// MapExisting 将类型映射到已有的表：每个可映射成员按同名列映射
func (r *Registry) MapExisting(sample any, table *schema.Table) (*DataType, error) {
	if table == nil {
		return nil, mappingErrorf("table is required")
	}
	t, err := typeOf(sample)
	if err != nil {
		return nil, err
	}
	dt, err := r.register(t, table)
	if err != nil {
		return nil, err
	}
	for _, f := range r.mappableFields(t) {
		if f.viaMappedBase && !f.primaryKey {
			continue
		}
		col := table.Column(f.columnName())
		if col == nil {
			continue
		}
		if f.tagErr != nil {
			return nil, mappingErrorf("member %s of %s: %v", f.Name, dt, f.tagErr)
		}
		m, err := dt.AddMember(f.Name, col)
		if err != nil {
			return nil, err
		}
		m.Rules = f.rules
		m.SelectByDefault = f.tag.Default
		if indirectType(f.Type) == uuidType {
			m.Converter = convert.UUID()
		}
	}
	return dt, nil
}

// DefaultMap 按约定批量映射
//
// 第一遍注册所有带主键的类型并映射主键；第二遍映射继承外键与其余成员，
// 此时被引用类型的主键都已就绪。没有主键的类型被跳过。
func (r *Registry) DefaultMap(samples ...any) ([]*DataType, error) {
	var mapped []*DataType
	for _, s := range samples {
		t, err := typeOf(s)
		if err != nil {
			return nil, err
		}
		if r.IsMapped(t) {
			return nil, mappingErrorf("type %s is already mapped", t)
		}
		if len(primaryKeyFields(r.mappableFields(t))) == 0 {
			continue
		}
		dt, err := r.register(t, schema.NewTable(tableNameOf(t)))
		if err != nil {
			return nil, err
		}
		mapped = append(mapped, dt)
	}
	for _, dt := range mapped {
		if err := r.mapPrimaryKey(dt); err != nil {
			return nil, err
		}
	}
	for _, dt := range mapped {
		if err := r.mapMembers(dt); err != nil {
			return nil, err
		}
	}
	return mapped, nil
}

func (r *Registry) register(t reflect.Type, table *schema.Table) (*DataType, error) {
	if !dbsql.IsSafeIdentifier(table.Name) {
		return nil, mappingErrorf("table name %q of %s is not a valid identifier", table.Name, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return nil, mappingErrorf("registry is sealed, cannot map %s", t)
	}
	if _, ok := r.types[t]; ok {
		return nil, mappingErrorf("type %s is already mapped", t)
	}
	dt := &DataType{registry: r, InnerType: t, Table: table}
	r.types[t] = dt
	r.order = append(r.order, dt)
	return dt, nil
}

// IsMapped 类型是否已注册
func (r *Registry) IsMapped(sample any) bool {
	t, err := typeOf(sample)
	return err == nil && r.lookup(t) != nil
}

// GetMap 查找已注册类型，不存在时返回映射错误
func (r *Registry) GetMap(sample any) (*DataType, error) {
	t, err := typeOf(sample)
	if err != nil {
		return nil, err
	}
	if dt := r.lookup(t); dt != nil {
		return dt, nil
	}
	return nil, mappingErrorf("type %s is not mapped", t)
}

// MustGetMap 同 GetMap，失败时 panic
func (r *Registry) MustGetMap(sample any) *DataType {
	dt, err := r.GetMap(sample)
	if err != nil {
		panic(err)
	}
	return dt
}

func (r *Registry) lookup(t reflect.Type) *DataType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[t]
}

// All 全部已注册类型，按注册顺序
func (r *Registry) All() []*DataType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*DataType, len(r.order))
	copy(out, r.order)
	return out
}

// Seal 结束映射阶段，此后 Map 均失败
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed 是否已结束映射阶段
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// TypeFor 泛型便捷：T 的 DataType
func TypeFor[T any](r *Registry) (*DataType, error) {
	return r.GetMap(reflect.TypeOf((*T)(nil)).Elem())
}

// mappableField 一个可映射成员
type mappableField struct {
	reflect.StructField
	tag           memberTag
	rules         []validation.Rule
	primaryKey    bool
	viaMappedBase bool
	// tagErr orm 或 validate 标签的解析错误，映射该成员时报告
	tagErr error
}

func (f mappableField) columnName() string {
	if f.tag.Column != "" {
		return f.tag.Column
	}
	return columnNameOf(f.Name)
}

// mappableFields 导出、未忽略的非匿名字段（含提升字段）
func (r *Registry) mappableFields(t reflect.Type) []mappableField {
	var out []mappableField
	tagged := false
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() {
			continue
		}
		tag, tagErr := parseMemberTag(sf.Tag)
		if tag.Ignore {
			continue
		}
		rules, err := validation.ParseRules(sf.Tag.Get(tagValidate))
		if tagErr == nil {
			tagErr = err
		}
		f := mappableField{StructField: sf, tag: tag, rules: rules, tagErr: tagErr}
		f.viaMappedBase = r.promotedThroughMapped(t, sf.Index)
		if tag.PrimaryKey {
			tagged = true
		}
		out = append(out, f)
	}
	for i := range out {
		if tagged {
			out[i].primaryKey = out[i].tag.PrimaryKey
		} else {
			out[i].primaryKey = strings.EqualFold(out[i].Name, "id")
		}
	}
	return out
}

// promotedThroughMapped 提升字段是否经过某个已映射的嵌入类型
func (r *Registry) promotedThroughMapped(t reflect.Type, index []int) bool {
	for k := 1; k < len(index); k++ {
		if r.lookup(indirectType(fieldByIndex(t, index[:k]).Type)) != nil {
			return true
		}
	}
	return false
}

// fieldByIndex 沿嵌入指针解析字段
func fieldByIndex(t reflect.Type, index []int) reflect.StructField {
	var f reflect.StructField
	for _, i := range index {
		t = indirectType(t)
		f = t.Field(i)
		t = f.Type
	}
	return f
}

func primaryKeyFields(fields []mappableField) []mappableField {
	var pk []mappableField
	for _, f := range fields {
		if f.primaryKey {
			pk = append(pk, f)
		}
	}
	return pk
}

// mapPrimaryKey 映射主键成员；自增仅用于无基类型的单一整数主键
func (r *Registry) mapPrimaryKey(dt *DataType) error {
	pk := primaryKeyFields(r.mappableFields(dt.InnerType))
	if len(pk) == 0 {
		return mappingErrorf("type %s has no primary key", dt)
	}
	root := dt.BaseDataType() == nil
	for _, f := range pk {
		m, err := r.addAtomic(dt, f)
		if err != nil {
			return err
		}
		m.Column.IsPrimaryKey = true
		m.Column.IsNullable = false
		m.Column.IsAutoNumber = root && len(pk) == 1 && !f.tag.ManualKey && m.Column.DbType.IsInteger()
	}
	return nil
}

// mapMembers 映射继承外键与非主键成员
func (r *Registry) mapMembers(dt *DataType) error {
	if base := dt.BaseDataType(); base != nil {
		if err := mapInheritance(dt, base); err != nil {
			return err
		}
	}
	for _, f := range r.mappableFields(dt.InnerType) {
		if f.primaryKey || f.viaMappedBase {
			continue
		}
		ft := indirectType(f.Type)
		switch {
		case isCollectionOfMapped(r, f.Type):
			// 集合由对端的外键表达
			continue
		case ft.Kind() == reflect.Struct && r.lookup(ft) != nil:
			if err := r.addForeignKey(dt, f, r.lookup(ft)); err != nil {
				return err
			}
		default:
			if _, err := r.addAtomic(dt, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func isCollectionOfMapped(r *Registry, t reflect.Type) bool {
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return false
	}
	et := indirectType(t.Elem())
	return et.Kind() == reflect.Struct && r.lookup(et) != nil
}

// mapInheritance 子表主键引用基表主键
func mapInheritance(dt, base *DataType) error {
	local, remote := dt.PrimaryKey(), base.PrimaryKey()
	if len(local) != len(remote) {
		return mappingErrorf("primary key of %s does not match base type %s", dt, base)
	}
	fk := &schema.ForeignKey{
		Name:        "FK_" + dt.Table.Name + "_" + base.Table.Name,
		RemoteTable: base.Table,
	}
	for i := range local {
		fk.Columns = append(fk.Columns, schema.ColumnPair{Local: local[i].Column, Remote: remote[i].Column})
	}
	dt.Table.AddForeignKey(fk)
	return nil
}

// addAtomic 单列成员；无法识别的类型以 JSON 存储
func (r *Registry) addAtomic(dt *DataType, f mappableField) (*DataMember, error) {
	if f.tagErr != nil {
		return nil, mappingErrorf("member %s of %s: %v", f.Name, dt, f.tagErr)
	}
	ft := indirectType(f.Type)
	col := &schema.Column{
		Name:   f.columnName(),
		DbType: schema.DbTypeFor(f.Type),
		Length: f.tag.Length,
	}
	if err := checkColumnName(dt, col.Name); err != nil {
		return nil, err
	}
	if col.Length == 0 {
		col.Length = validation.MaxLength(f.rules)
	}

	var conv convert.Converter
	switch {
	case ft == uuidType:
		col.DbType = schema.Guid
		conv = convert.UUID()
	case f.tag.JSON || col.DbType == schema.Unknown:
		col.DbType = schema.String
		conv = convert.JSON(f.Type)
	}

	required := validation.IsRequired(f.rules)
	switch f.Type.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		col.IsNullable = !required
	default:
		col.IsNullable = col.DbType == schema.String && !required
	}

	dt.Table.AddColumn(col)
	m, err := dt.AddMember(f.Name, col)
	if err != nil {
		return nil, err
	}
	m.Converter = conv
	m.Rules = f.rules
	m.SelectByDefault = f.tag.Default
	if f.tag.Index || f.tag.Unique {
		prefix := "IX_"
		if f.tag.Unique {
			prefix = "UX_"
		}
		dt.Table.AddIndex(&schema.Index{
			Name:    prefix + dt.Table.Name + "_" + col.Name,
			Columns: []*schema.Column{col},
			Unique:  f.tag.Unique,
		})
	}
	return m, nil
}

// addForeignKey 为被引用类型的每个主键成员合成一列 {member}_{pk}，并登记外键
func (r *Registry) addForeignKey(dt *DataType, f mappableField, ref *DataType) error {
	if f.tagErr != nil {
		return mappingErrorf("member %s of %s: %v", f.Name, dt, f.tagErr)
	}
	pk := ref.PrimaryKey()
	if len(pk) == 0 {
		return mappingErrorf("referenced type %s of %s.%s has no primary key", ref, dt, f.Name)
	}
	required := validation.IsRequired(f.rules)
	fk := &schema.ForeignKey{
		Name:        "FK_" + dt.Table.Name + "_" + f.Name,
		RemoteTable: ref.Table,
	}
	for i, p := range pk {
		expr := f.Name + "." + p.Expression()
		name := columnNameOf(expr)
		if f.tag.Column != "" && len(pk) == 1 {
			name = f.tag.Column
		}
		if err := checkColumnName(dt, name); err != nil {
			return err
		}
		col := dt.Table.AddColumn(&schema.Column{
			Name:       name,
			DbType:     p.Column.DbType,
			Length:     p.Column.Length,
			IsNullable: !required,
		})
		m, err := dt.AddMember(expr, col)
		if err != nil {
			return err
		}
		m.Converter = p.Converter
		m.SelectByDefault = f.tag.Default
		if required && i == 0 {
			m.Rules = []validation.Rule{validation.Required{}}
		}
		fk.Columns = append(fk.Columns, schema.ColumnPair{Local: col, Remote: p.Column})
	}
	dt.Table.AddForeignKey(fk)
	return nil
}
