package repo

import (
	"strings"

	"relmap/data/orm"
	"relmap/errors"
)

// isSafeFieldName 字段名须为点分的标识符路径，如 Name、Category.Name
//
// 每段非空，以字母或下划线开头，其后为字母、数字或下划线。
func isSafeFieldName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i, ch := range part {
			switch {
			case ch == '_', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
			case i > 0 && ch >= '0' && ch <= '9':
			default:
				return false
			}
		}
	}
	return true
}

// memberRef 检查字段名语法，再在查询中解析为成员引用（必要时补建连接）
//
// 未映射的路径与止于外键对象的路径都视为非法输入。
func memberRef(s *orm.Select, field string) (orm.MemberRef, error) {
	if !isSafeFieldName(field) {
		return orm.MemberRef{}, errors.NewInvalidInput(field, "invalid field name")
	}
	ref, err := s.Ref(field)
	if err != nil {
		return orm.MemberRef{}, errors.WrapError(err, errors.ErrCodeInvalidInput, "unknown field").WithDetail("field", field)
	}
	return ref, nil
}
