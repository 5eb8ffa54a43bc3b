package sql

import "strings"

// IsSafeIdentifier 判断标识符是否为“安全的数据库标识符”。
//
// 允许形式：
//   - 单一标识符：foo, bar_1
//   - 带点的限定名：schema.table, table.column
//
// 规则（按段）：
//   - 每段不能为空；
//   - 首字符必须是字母或下划线 [A-Za-z_]；
//   - 后续字符必须是字母、数字或下划线 [A-Za-z0-9_]。
func IsSafeIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			ch := part[i]
			letter := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
			if i == 0 && !letter {
				return false
			}
			if !letter && !(ch >= '0' && ch <= '9') {
				return false
			}
		}
	}
	return true
}

// mustIdentifier 不安全的标识符直接 panic
func mustIdentifier(kind, name string) string {
	if !IsSafeIdentifier(name) {
		panic("sql: unsafe " + kind + " name " + name)
	}
	return name
}
