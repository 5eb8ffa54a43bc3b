package orm

import (
	"reflect"
	"strings"

	dbsql "relmap/data/db/sql"
	"relmap/data/orm/convert"
	"relmap/data/schema"
	"relmap/validation"
)

// Validator 实例级校验器
type Validator interface {
	Validate(instance any) validation.Errors
}

// ValidatorFunc 函数形式的 Validator
type ValidatorFunc func(instance any) validation.Errors

func (f ValidatorFunc) Validate(instance any) validation.Errors { return f(instance) }

// DataType 一个 Go 结构体类型到一张表的映射
//
// 继承以嵌入表达：类型的第一个匿名结构体字段是它的基类型，逐级向上，
// 最近的已映射基类型即 BaseDataType。
type DataType struct {
	registry *Registry

	InnerType   reflect.Type
	Table       *schema.Table
	DataMembers []*DataMember
	Validators  []Validator
	// Abstract 为真时多态查询不为该类型本身生成子查询
	Abstract bool
}

// Name 类型名（可用作 SQL 别名的形式）
func (dt *DataType) Name() string { return tableNameOfType(dt.InnerType) }

func (dt *DataType) String() string { return dt.InnerType.String() }

// Registry 所属注册表
func (dt *DataType) Registry() *Registry { return dt.registry }

// New 创建该类型的新实例（指针）
func (dt *DataType) New() any { return reflect.New(dt.InnerType).Interface() }

// BaseDataType 最近的已映射基类型，没有时返回 nil
func (dt *DataType) BaseDataType() *DataType {
	t := dt.InnerType
	for {
		base, ok := embeddedBase(t)
		if !ok {
			return nil
		}
		if bdt := dt.registry.lookup(base); bdt != nil {
			return bdt
		}
		t = base
	}
}

// embeddedBase 第一个匿名结构体字段的类型
func embeddedBase(t reflect.Type) (reflect.Type, bool) {
	_, ft, ok := embeddedField(t)
	return ft, ok
}

func embeddedField(t reflect.Type) (int, reflect.Type, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := indirectType(f.Type)
		if ft.Kind() == reflect.Struct {
			return i, ft, true
		}
	}
	return 0, nil, false
}

// BaseDataTypes 自身及全部已映射基类型，由近及远
func (dt *DataType) BaseDataTypes() []*DataType {
	levels := []*DataType{dt}
	for b := dt.BaseDataType(); b != nil; b = b.BaseDataType() {
		levels = append(levels, b)
	}
	return levels
}

// IsSubTypeOf dt 是否（间接）继承自 base
func (dt *DataType) IsSubTypeOf(base *DataType) bool {
	for b := dt.BaseDataType(); b != nil; b = b.BaseDataType() {
		if b == base {
			return true
		}
	}
	return false
}

// PrimaryKey 列为主键的成员，按声明顺序
func (dt *DataType) PrimaryKey() []*DataMember {
	var pk []*DataMember
	for _, m := range dt.DataMembers {
		if m.Column.IsPrimaryKey {
			pk = append(pk, m)
		}
	}
	return pk
}

// AllDataMembers 主键在前，随后是自身及各级基类型的非主键成员（由近及远）
func (dt *DataType) AllDataMembers() []*DataMember {
	members := dt.PrimaryKey()
	for _, level := range dt.BaseDataTypes() {
		for _, m := range level.DataMembers {
			if !m.Column.IsPrimaryKey {
				members = append(members, m)
			}
		}
	}
	return members
}

// Member 按表达式查找本级成员
func (dt *DataType) Member(expr string) *DataMember {
	for _, m := range dt.DataMembers {
		if m.Expression() == expr {
			return m
		}
	}
	return nil
}

// FindMember 在自身及各级基类型中查找成员
func (dt *DataType) FindMember(expr string) *DataMember {
	for _, level := range dt.BaseDataTypes() {
		if m := level.Member(expr); m != nil {
			return m
		}
	}
	return nil
}

// AddMember 以点分路径映射成员到本表的列
func (dt *DataType) AddMember(expr string, column *schema.Column) (*DataMember, error) {
	me, err := NewMemberExpression(dt.InnerType, expr)
	if err != nil {
		return nil, err
	}
	return dt.AddAccessor(me, column)
}

// AddAccessor 以自定义访问器映射成员
func (dt *DataType) AddAccessor(member MemberAccessor, column *schema.Column) (*DataMember, error) {
	if member == nil || column == nil {
		return nil, mappingErrorf("member and column of %s are required", dt)
	}
	if err := checkColumnName(dt, column.Name); err != nil {
		return nil, err
	}
	if column.Table != dt.Table {
		return nil, mappingErrorf("column %s does not belong to table %s of %s", column.FullName(), dt.Table.Name, dt)
	}
	if dt.Member(member.Expression()) != nil {
		return nil, mappingErrorf("member %s of %s is already mapped", member.Expression(), dt)
	}
	m := &DataMember{DataType: dt, Member: member, Column: column}
	dt.DataMembers = append(dt.DataMembers, m)
	return m, nil
}

func checkColumnName(dt *DataType, name string) error {
	if !dbsql.IsSafeIdentifier(name) {
		return mappingErrorf("column name %q of %s is not a valid identifier", name, dt)
	}
	return nil
}

// IsForeignKey 成员 member 引用的类型已映射，且其每个主键成员在本级都有对应的 member.pk 成员
func (dt *DataType) IsForeignKey(member string) bool {
	_, ok := dt.foreignKeyTarget(member)
	return ok
}

// ForeignKeyTarget 成员引用的已映射类型
func (dt *DataType) ForeignKeyTarget(member string) (*DataType, bool) {
	return dt.foreignKeyTarget(member)
}

func (dt *DataType) foreignKeyTarget(member string) (*DataType, bool) {
	f, ok := dt.InnerType.FieldByName(member)
	if !ok || strings.Contains(member, ".") {
		return nil, false
	}
	ref := dt.registry.lookup(indirectType(f.Type))
	if ref == nil {
		return nil, false
	}
	pk := ref.PrimaryKey()
	if len(pk) == 0 {
		return nil, false
	}
	for _, p := range pk {
		if dt.Member(member+"."+p.Expression()) == nil {
			return nil, false
		}
	}
	return ref, true
}

// ForeignKeyMembers 本级全部外键成员名，按映射顺序
func (dt *DataType) ForeignKeyMembers() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range dt.DataMembers {
		name, _, ok := strings.Cut(m.Expression(), ".")
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		if dt.IsForeignKey(name) {
			names = append(names, name)
		}
	}
	return names
}

// ForeignKeyComponents 外键成员 member 在本级对应的列成员，按被引用类型主键顺序
func (dt *DataType) ForeignKeyComponents(member string) []*DataMember {
	ref, ok := dt.foreignKeyTarget(member)
	if !ok {
		return nil
	}
	var out []*DataMember
	for _, p := range ref.PrimaryKey() {
		out = append(out, dt.Member(member+"."+p.Expression()))
	}
	return out
}

// SubDataTypes 直接子类型
func (dt *DataType) SubDataTypes() []*DataType {
	var subs []*DataType
	for _, other := range dt.registry.All() {
		if other != dt && other.BaseDataType() == dt {
			subs = append(subs, other)
		}
	}
	return subs
}

// SubDataTypesRecursive 全部子孙类型，深度优先
func (dt *DataType) SubDataTypesRecursive() []*DataType {
	var out []*DataType
	for _, sub := range dt.SubDataTypes() {
		out = append(out, sub)
		out = append(out, sub.SubDataTypesRecursive()...)
	}
	return out
}

// OutboundForeignKeys 本表引用其他表的外键
func (dt *DataType) OutboundForeignKeys() []*schema.ForeignKey {
	return dt.Table.ForeignKeys
}

// InboundForeignKeys 其他已映射表引用本表的外键
func (dt *DataType) InboundForeignKeys() []*schema.ForeignKey {
	var out []*schema.ForeignKey
	for _, other := range dt.registry.All() {
		for _, fk := range other.Table.ForeignKeys {
			if fk.RemoteTable == dt.Table {
				out = append(out, fk)
			}
		}
	}
	return out
}

// Validate 校验自身及各级基类型的成员规则与校验器
func (dt *DataType) Validate(instance any) validation.Errors {
	var errs validation.Errors
	for _, level := range dt.BaseDataTypes() {
		errs = append(errs, level.validateLevel(instance)...)
	}
	return errs
}

func (dt *DataType) validateLevel(instance any) validation.Errors {
	var errs validation.Errors
	for _, m := range dt.DataMembers {
		if len(m.Rules) == 0 {
			continue
		}
		value, _ := m.Member.Get(instance)
		errs = append(errs, validation.Check(m.Expression(), value, m.Rules)...)
	}
	for _, v := range dt.Validators {
		errs = append(errs, v.Validate(instance)...)
	}
	return errs
}

// IsSaved 每个主键成员都有非零值时视为已保存
func (dt *DataType) IsSaved(instance any) bool {
	pk := dt.PrimaryKey()
	if len(pk) == 0 {
		return false
	}
	for _, m := range pk {
		v, ok := m.Member.Get(instance)
		if !ok || isZeroValue(v) {
			return false
		}
	}
	return true
}

// DataMember 一个成员路径到一列的映射
type DataMember struct {
	DataType  *DataType
	Member    MemberAccessor
	Column    *schema.Column
	Converter convert.Converter
	// SelectByDefault 未指定查询成员时默认选取
	SelectByDefault bool
	Rules           []validation.Rule
}

// Expression 成员路径
func (m *DataMember) Expression() string { return m.Member.Expression() }

func (m *DataMember) String() string { return m.DataType.String() + "." + m.Expression() }

// ToColumn 将成员值转换为列值
func (m *DataMember) ToColumn(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, nil
	}
	if m.Converter != nil {
		return m.Converter.MemberToColumn(value)
	}
	return value, nil
}

// GetValueForColumn 读取实例成员并转换为列值；路径中断时返回 nil
func (m *DataMember) GetValueForColumn(instance any) (any, error) {
	value, ok := m.Member.Get(instance)
	if !ok {
		return nil, nil
	}
	return m.ToColumn(value)
}

// SetValueFromColumn 转换列值并写入实例成员
func (m *DataMember) SetValueFromColumn(instance any, value any) error {
	if m.Converter != nil && value != nil {
		var err error
		if value, err = m.Converter.ColumnToMember(value); err != nil {
			return err
		}
	}
	return m.Member.Set(instance, value)
}

// ParseValue 将文本解析为成员声明类型的值，用于查询参数等外部输入
func (m *DataMember) ParseValue(text string) (any, error) {
	v := reflect.New(m.Member.Type()).Elem()
	if err := assignString(v, text); err != nil {
		return nil, mappingErrorf("%s: %v", m, err)
	}
	return v.Interface(), nil
}

// Coerce 将任意值转换为成员声明类型，规则与从列读取时相同；越界或无法转换时报错
func (m *DataMember) Coerce(value any) (any, error) {
	v := reflect.New(m.Member.Type()).Elem()
	if err := assignValue(v, value); err != nil {
		return nil, mappingErrorf("%s: %v", m, err)
	}
	return v.Interface(), nil
}

// SetConverter 为注册表中所有声明类型为 t 的成员设置转换器
func SetConverter(r *Registry, converter convert.Converter, t reflect.Type) int {
	n := 0
	for _, dt := range r.All() {
		for _, m := range dt.DataMembers {
			if m.Member.Type() == t {
				m.Converter = converter
				n++
			}
		}
	}
	return n
}
