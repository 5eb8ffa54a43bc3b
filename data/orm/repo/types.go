package repo

import "strings"

// SortDirection 排序方向
type SortDirection string

const (
	ASC  SortDirection = "ASC"
	DESC SortDirection = "DESC"
)

func (s SortDirection) IsValid() bool {
	return strings.EqualFold(string(s), string(ASC)) || strings.EqualFold(string(s), string(DESC))
}

// Sort 单个排序项，Field 为成员路径
type Sort struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultPageSize 未给出 Size 时的页大小
const DefaultPageSize = 20

// QueryOptions 分页列表选项
//
// Filters 的键为成员路径，可带操作后缀：
// _like _gt _gte _lt _lte _ne _in _not_in；无后缀表示相等。
// _in 与 _not_in 的值以逗号分隔。
type QueryOptions struct {
	Page    int               `json:"page"` // 从 1 开始
	Size    int               `json:"size"`
	Fields  []string          `json:"fields"`
	Sorts   []Sort            `json:"sorts"`
	Filters map[string]string `json:"filters"`
}

// PagedResult 分页结果
type PagedResult[T any] struct {
	Data       []*T  `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalPages int   `json:"total_pages"`
}
