// Package keygen 为非自增主键生成新值
package keygen

import (
	"reflect"
	"strconv"

	"github.com/google/uuid"
)

// Generator 主键生成器
type Generator interface {
	// NextKey 为类型 t 的主键生成新值；不支持该类型时返回 ok=false
	NextKey(t reflect.Type) (value any, ok bool, err error)
}

// UUIDGenerator 为 uuid.UUID 与 string 主键生成随机 UUID
type UUIDGenerator struct{}

var uuidType = reflect.TypeOf(uuid.UUID{})

func (UUIDGenerator) NextKey(t reflect.Type) (any, bool, error) {
	switch {
	case t == uuidType:
		id, err := uuid.NewRandom()
		return id, err == nil, err
	case t.Kind() == reflect.String:
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, false, err
		}
		return reflect.ValueOf(id.String()).Convert(t).Interface(), true, nil
	}
	return nil, false, nil
}

// Chain 依次尝试多个生成器，第一个支持该类型的生效
type Chain []Generator

func (c Chain) NextKey(t reflect.Type) (any, bool, error) {
	for _, g := range c {
		v, ok, err := g.NextKey(t)
		if err != nil || ok {
			return v, ok, err
		}
	}
	return nil, false, nil
}

// convertID 将雪花 ID 转为整数或十进制字符串形式的 t
func convertID(id int64, t reflect.Type) (any, bool) {
	switch t.Kind() {
	case reflect.Int64, reflect.Int:
		return reflect.ValueOf(id).Convert(t).Interface(), true
	case reflect.Uint64, reflect.Uint:
		return reflect.ValueOf(uint64(id)).Convert(t).Interface(), true
	case reflect.String:
		return reflect.ValueOf(strconv.FormatInt(id, 10)).Convert(t).Interface(), true
	}
	return nil, false
}
