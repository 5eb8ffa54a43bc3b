package orm

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// 成员标签 `orm:"..."`，以 ; 分隔：
//
//	column:name   列名
//	primaryKey    主键
//	manualKey     整数主键也不自增
//	default       默认查询时选取
//	length:N      字符串列长度
//	json          强制以 JSON 存储
//	index         建立普通索引
//	unique        建立唯一索引
//	-             忽略
//
// 校验标签 `validate:"required,max=100"` 同时决定列的可空性与长度。
const (
	tagORM      = "orm"
	tagValidate = "validate"
)

// memberTag 解析后的成员标签
type memberTag struct {
	Column     string
	PrimaryKey bool
	ManualKey  bool
	Default    bool
	Length     int
	JSON       bool
	Index      bool
	Unique     bool
	Ignore     bool
}

func parseMemberTag(tag reflect.StructTag) (memberTag, error) {
	var mt memberTag
	raw := tag.Get(tagORM)
	if raw == "-" {
		mt.Ignore = true
		return mt, nil
	}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, ":")
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "column":
			mt.Column = strings.TrimSpace(value)
		case "primarykey":
			mt.PrimaryKey = true
		case "manualkey":
			mt.ManualKey = true
		case "default":
			mt.Default = true
		case "length":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return mt, fmt.Errorf("invalid length %q", value)
			}
			mt.Length = n
		case "json":
			mt.JSON = true
		case "index":
			mt.Index = true
		case "unique":
			mt.Unique = true
		}
	}
	return mt, nil
}

// tableNamer 模型可实现 TableName() 自定义表名
type tableNamer interface {
	TableName() string
}

// tableNameOf 表名：TableName() 优先，否则为类型名（. < > 替换为 _）
func tableNameOf(t reflect.Type) string {
	if tn, ok := reflect.New(t).Interface().(tableNamer); ok {
		if name := tn.TableName(); name != "" {
			return name
		}
	}
	if tn, ok := reflect.Zero(t).Interface().(tableNamer); ok {
		if name := tn.TableName(); name != "" {
			return name
		}
	}
	return tableNameOfType(t)
}

var typeNameReplacer = strings.NewReplacer(".", "_", "<", "_", ">", "_", "[", "_", "]", "_", "/", "_", ",", "_", " ", "")

// tableNameOfType 类型名，替换掉不能出现在标识符中的字符
func tableNameOfType(t reflect.Type) string {
	return typeNameReplacer.Replace(t.Name())
}

// columnNameOf 成员路径对应的默认列名
func columnNameOf(expr string) string {
	return strings.ReplaceAll(expr, ".", "_")
}
