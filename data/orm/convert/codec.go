package convert

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// Snappy 压缩二进制成员；与 JSON 串联可压缩大对象
func Snappy() Converter {
	return New(
		func(b []byte) ([]byte, error) { return snappy.Encode(nil, b), nil },
		func(b []byte) ([]byte, error) {
			out, err := snappy.Decode(nil, b)
			if err != nil {
				return nil, fmt.Errorf("convert: snappy: %w", err)
			}
			return out, nil
		},
	)
}

type uuidConverter struct{}

// UUID uuid.UUID <-> 规范文本形式
func UUID() Converter { return uuidConverter{} }

func (uuidConverter) MemberToColumn(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return v.String(), nil
	case *uuid.UUID:
		if v == nil {
			return nil, nil
		}
		return v.String(), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("convert: %w", err)
		}
		return id.String(), nil
	}
	return nil, fmt.Errorf("convert: cannot use %T as uuid", value)
}

func (uuidConverter) ColumnToMember(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return v, nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	}
	return nil, fmt.Errorf("convert: cannot read uuid from %T", value)
}

// TypeNames 类型名称表，将 reflect.Type 成员保存为名称
type TypeNames struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// TypeName 创建类型名称转换器，只有登记过的类型可以读回
func TypeName(types ...reflect.Type) *TypeNames {
	n := &TypeNames{types: make(map[string]reflect.Type, len(types))}
	for _, t := range types {
		n.Register(t)
	}
	return n
}

// Register 登记类型
func (n *TypeNames) Register(t reflect.Type) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.types[typeKey(t)] = t
}

func typeKey(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func (n *TypeNames) MemberToColumn(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case reflect.Type:
		return typeKey(v), nil
	}
	return nil, fmt.Errorf("convert: cannot use %T as reflect.Type", value)
}

func (n *TypeNames) ColumnToMember(value any) (any, error) {
	var name string
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		name = v
	case []byte:
		name = string(v)
	default:
		return nil, fmt.Errorf("convert: cannot read type name from %T", value)
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	t, ok := n.types[name]
	if !ok {
		return nil, fmt.Errorf("convert: unknown type %q", name)
	}
	return t, nil
}
