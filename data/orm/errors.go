package orm

import (
	"relmap/errors"
)

func mappingErrorf(format string, args ...any) error {
	return errors.NewMappingError(format, args...)
}

// IsMappingError 是否为映射错误：重复映射、未映射、外键歧义、非法参数
func IsMappingError(err error) bool {
	return errors.IsMapping(err)
}
