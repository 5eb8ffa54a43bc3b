// Package convert 提供成员值与列值之间的双向转换器
package convert

import (
	"fmt"
	"reflect"
)

// Converter 成员值 <-> 列值
//
// MemberToColumn 在写入与构造过滤条件时调用；ColumnToMember 在物化时调用，
// 其输入是驱动返回的原始值（可能是 string、[]byte、int64 等）。
type Converter interface {
	MemberToColumn(value any) (any, error)
	ColumnToMember(value any) (any, error)
}

// Func 以强类型函数实现 Converter
//
// 输入值类型不符时会尝试按 reflect 规则转换（包括 string 与 []byte 互转）。
type Func[M any, C any] struct {
	ToColumn func(M) (C, error)
	ToMember func(C) (M, error)
}

// New 构造强类型转换器
func New[M any, C any](toColumn func(M) (C, error), toMember func(C) (M, error)) Func[M, C] {
	return Func[M, C]{ToColumn: toColumn, ToMember: toMember}
}

func (f Func[M, C]) MemberToColumn(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	m, err := coerce[M](value)
	if err != nil {
		return nil, err
	}
	return f.ToColumn(m)
}

func (f Func[M, C]) ColumnToMember(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	c, err := coerce[C](value)
	if err != nil {
		return nil, err
	}
	return f.ToMember(c)
}

// coerce 将任意值转换为 T
func coerce[T any](value any) (T, error) {
	if v, ok := value.(T); ok {
		return v, nil
	}
	var zero T
	target := reflect.TypeOf((*T)(nil)).Elem()
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Type() != target {
		rv = rv.Elem()
	}
	if rv.Type() == target {
		return rv.Interface().(T), nil
	}
	if target.Kind() == reflect.Interface && rv.Type().Implements(target) {
		return rv.Interface().(T), nil
	}
	switch {
	case target.Kind() == reflect.String && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
		return reflect.ValueOf(string(rv.Bytes())).Convert(target).Interface().(T), nil
	case target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Uint8 && rv.Kind() == reflect.String:
		return reflect.ValueOf([]byte(rv.String())).Convert(target).Interface().(T), nil
	case rv.Type().ConvertibleTo(target) && sameFamily(rv.Kind(), target.Kind()):
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, fmt.Errorf("convert: cannot use %T as %s", value, target)
}

func sameFamily(a, b reflect.Kind) bool {
	return family(a) != 0 && family(a) == family(b)
}

func family(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 1
	case reflect.String:
		return 2
	case reflect.Bool:
		return 3
	case reflect.Slice, reflect.Array, reflect.Struct, reflect.Map:
		return 4
	}
	return 0
}

// Chain 依次应用多个转换器：写入时从前到后，读取时从后到前
type Chain []Converter

func (c Chain) MemberToColumn(value any) (any, error) {
	var err error
	for _, conv := range c {
		if value, err = conv.MemberToColumn(value); err != nil {
			return nil, err
		}
	}
	return value, nil
}

func (c Chain) ColumnToMember(value any) (any, error) {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		if value, err = c[i].ColumnToMember(value); err != nil {
			return nil, err
		}
	}
	return value, nil
}
