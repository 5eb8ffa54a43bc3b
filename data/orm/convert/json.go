package convert

import (
	"encoding/json"
	"fmt"
	"reflect"
)

type jsonConverter struct {
	t reflect.Type
}

// JSON 将任意成员值序列化为 JSON 文本存储；读取时反序列化为 t
func JSON(t reflect.Type) Converter {
	return jsonConverter{t: t}
}

func (c jsonConverter) MemberToColumn(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(value)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("convert: json encode %s: %w", c.t, err)
	}
	return string(b), nil
}

func (c jsonConverter) ColumnToMember(value any) (any, error) {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("convert: json decode %s from %T", c.t, value)
	}
	if len(data) == 0 {
		return nil, nil
	}
	target := reflect.New(c.t)
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return nil, fmt.Errorf("convert: json decode %s: %w", c.t, err)
	}
	return target.Elem().Interface(), nil
}
