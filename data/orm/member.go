package orm

import (
	"database/sql"
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// MemberAccessor 按路径读写实例成员
//
// 实例总是指向结构体的指针。Get 在路径中途遇到 nil 指针时返回 ok=false；
// Set 会为路径中的 nil 指针分配新对象。
type MemberAccessor interface {
	Expression() string
	Type() reflect.Type
	Get(instance any) (value any, ok bool)
	Set(instance any, value any) error
	CanWrite() bool
}

// MemberExpression 基于 reflect 的点分路径访问器，如 "Address.Country.Name"
//
// 每一段都按 FieldByName 解析，因此嵌入类型提升的字段可以直接按名称访问。
type MemberExpression struct {
	root   reflect.Type
	expr   string
	fields []reflect.StructField
}

// NewMemberExpression 解析 root 类型上的路径表达式
func NewMemberExpression(root reflect.Type, expr string) (*MemberExpression, error) {
	root = indirectType(root)
	if root.Kind() != reflect.Struct {
		return nil, mappingErrorf("%s is not a struct type", root)
	}
	if strings.TrimSpace(expr) == "" {
		return nil, mappingErrorf("empty member expression on %s", root)
	}

	m := &MemberExpression{root: root, expr: expr}
	t := root
	for _, name := range strings.Split(expr, ".") {
		if t.Kind() != reflect.Struct {
			return nil, mappingErrorf("member %q of %s: %s is not a struct", expr, root, t)
		}
		f, ok := t.FieldByName(name)
		if !ok || !f.IsExported() {
			return nil, mappingErrorf("type %s has no exported member %q", t, name)
		}
		m.fields = append(m.fields, f)
		t = indirectType(f.Type)
	}
	return m, nil
}

// MustMemberExpression 同 NewMemberExpression，失败时 panic
func MustMemberExpression(root reflect.Type, expr string) *MemberExpression {
	m, err := NewMemberExpression(root, expr)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *MemberExpression) Expression() string { return m.expr }

// Root 路径所在的结构体类型
func (m *MemberExpression) Root() reflect.Type { return m.root }

// Type 路径末端成员的声明类型
func (m *MemberExpression) Type() reflect.Type { return m.fields[len(m.fields)-1].Type }

// Depth 路径段数
func (m *MemberExpression) Depth() int { return len(m.fields) }

func (m *MemberExpression) CanWrite() bool { return true }

func (m *MemberExpression) Get(instance any) (any, bool) {
	v, ok := m.locate(instance, false)
	if !ok {
		return nil, false
	}
	return v.Interface(), true
}

func (m *MemberExpression) Set(instance any, value any) error {
	v, ok := m.locate(instance, true)
	if !ok {
		return mappingErrorf("cannot set %s on %T", m.expr, instance)
	}
	if err := assignValue(v, value); err != nil {
		return fmt.Errorf("orm: set %s.%s: %w", m.root.Name(), m.expr, err)
	}
	return nil
}

// Addr 返回路径末端成员的可寻址值，必要时分配中间对象
func (m *MemberExpression) Addr(instance any) (reflect.Value, bool) {
	return m.locate(instance, true)
}

// locate 沿路径定位成员；alloc 为真时为 nil 指针分配对象
func (m *MemberExpression) locate(instance any, alloc bool) (reflect.Value, bool) {
	v := reflect.ValueOf(instance)
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	if alloc && (v.Kind() != reflect.Pointer || v.IsNil()) {
		return reflect.Value{}, false
	}
	v, ok := upcast(v, m.root, alloc)
	if !ok {
		return reflect.Value{}, false
	}
	for _, f := range m.fields {
		for _, idx := range f.Index {
			if !deref(&v, alloc) {
				return reflect.Value{}, false
			}
			if v.Kind() != reflect.Struct {
				return reflect.Value{}, false
			}
			v = v.Field(idx)
		}
	}
	return v, true
}

// upcast 沿嵌入链找到类型为 root 的内嵌值，派生类型的实例因此可以直接用于基类型的成员
func upcast(v reflect.Value, root reflect.Type, alloc bool) (reflect.Value, bool) {
	for {
		if !deref(&v, alloc) || v.Kind() != reflect.Struct {
			return reflect.Value{}, false
		}
		if v.Type() == root {
			return v, true
		}
		idx, _, ok := embeddedField(v.Type())
		if !ok {
			return reflect.Value{}, false
		}
		v = v.Field(idx)
	}
}

// deref 解引用指针；alloc 为真时为 nil 指针分配
func deref(v *reflect.Value, alloc bool) bool {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			if !alloc || !v.CanSet() {
				return false
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		*v = v.Elem()
	}
	return true
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// AccessorFunc 由调用方显式提供读写函数的访问器，Setter 为 nil 时只读
type AccessorFunc struct {
	Path       string
	MemberType reflect.Type
	Getter     func(instance any) (any, bool)
	Setter     func(instance any, value any) error
}

func (a AccessorFunc) Expression() string { return a.Path }
func (a AccessorFunc) Type() reflect.Type { return a.MemberType }
func (a AccessorFunc) CanWrite() bool     { return a.Setter != nil }

func (a AccessorFunc) Get(instance any) (any, bool) {
	if a.Getter == nil || instance == nil {
		return nil, false
	}
	return a.Getter(instance)
}

func (a AccessorFunc) Set(instance any, value any) error {
	if a.Setter == nil {
		return mappingErrorf("member %s is read-only", a.Path)
	}
	return a.Setter(instance, value)
}

var (
	scannerType         = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	timeType            = reflect.TypeOf(time.Time{})
)

// timeLayouts 依次尝试；time.Time.String 的格式用于驱动原样回传的文本
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime 依次尝试 timeLayouts
//
// time.Parse 不接受的时区缩写（如单字母）在最后一步去掉，按数值偏移解析后
// 以同名固定时区还原。
func parseTime(s string) (time.Time, bool) {
	s, _, _ = strings.Cut(s, " m=")
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02 15:04:05.999999999 -0700", s[:i])
	if err != nil {
		return time.Time{}, false
	}
	_, offset := t.Zone()
	return t.In(time.FixedZone(s[i+1:], offset)), true
}

// assignValue 将驱动或转换器产出的值写入成员
func assignValue(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if src.Kind() == reflect.Pointer {
		if src.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return assignValue(dst, src.Elem().Interface())
	}
	if dst.Kind() == reflect.Pointer {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return assignValue(dst.Elem(), value)
	}
	if reflect.PointerTo(dst.Type()).Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(value)
	}

	if b, ok := value.([]byte); ok {
		if dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8 {
			dst.SetBytes(append([]byte(nil), b...))
			return nil
		}
		return assignValue(dst, string(b))
	}

	if s, ok := value.(string); ok {
		return assignString(dst, s)
	}

	switch {
	case dst.Kind() == reflect.Bool && isIntKind(src.Kind()):
		dst.SetBool(src.Int() != 0)
		return nil
	case dst.Kind() == reflect.String && (isIntKind(src.Kind()) || isUintKind(src.Kind())):
		// 数值到字符串按十进制文本
		dst.SetString(fmt.Sprint(value))
		return nil
	case isNumberKind(dst.Kind()) && (isNumberKind(src.Kind()) || src.Kind() == reflect.Bool):
		if src.Kind() == reflect.Bool {
			n := int64(0)
			if src.Bool() {
				n = 1
			}
			src = reflect.ValueOf(n)
		}
		if overflows(dst, src) {
			return fmt.Errorf("value %v overflows %s", value, dst.Type())
		}
		dst.Set(src.Convert(dst.Type()))
		return nil
	case src.Type().ConvertibleTo(dst.Type()) && src.Kind() == dst.Kind():
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, dst.Type())
}

func assignString(dst reflect.Value, s string) error {
	if dst.Type() == timeType {
		t, ok := parseTime(s)
		if !ok {
			return fmt.Errorf("cannot parse %q as time", s)
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}
	if reflect.PointerTo(dst.Type()).Implements(textUnmarshalerType) {
		return dst.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
	}
	switch {
	case dst.Kind() == reflect.String:
		dst.SetString(s)
	case dst.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case isIntKind(dst.Kind()):
		n, err := strconv.ParseInt(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case isUintKind(dst.Kind()):
		n, err := strconv.ParseUint(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetUint(n)
	case dst.Kind() == reflect.Float32 || dst.Kind() == reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8:
		dst.SetBytes([]byte(s))
	default:
		return fmt.Errorf("cannot assign string to %s", dst.Type())
	}
	return nil
}

// overflows 整数值写入更窄或无符号的整数成员时是否越界；浮点目标不检查
func overflows(dst, src reflect.Value) bool {
	switch {
	case isIntKind(dst.Kind()) && isIntKind(src.Kind()):
		return dst.OverflowInt(src.Int())
	case isIntKind(dst.Kind()) && isUintKind(src.Kind()):
		return src.Uint() > math.MaxInt64 || dst.OverflowInt(int64(src.Uint()))
	case isUintKind(dst.Kind()) && isIntKind(src.Kind()):
		return src.Int() < 0 || dst.OverflowUint(uint64(src.Int()))
	case isUintKind(dst.Kind()) && isUintKind(src.Kind()):
		return dst.OverflowUint(src.Uint())
	}
	return false
}

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isNumberKind(k reflect.Kind) bool {
	return isIntKind(k) || isUintKind(k) || k == reflect.Float32 || k == reflect.Float64
}

// isZeroValue 成员值是否为“未赋值”：nil、nil 指针或类型零值
func isZeroValue(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer {
		return v.IsNil()
	}
	return v.IsZero()
}
