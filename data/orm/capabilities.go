package orm

import (
	"relmap/data/db/dialect"
)

// Capability 表示后端可选支持的能力标识。
// 超出能力的调用应返回明确错误或走替代路径，而非静默降级。
type Capability string

const (
	// CapabilityAutoNumber 后端可生成自增主键并查询最近一次的值
	CapabilityAutoNumber Capability = "auto_number"
	// CapabilityAlterForeignKey 外键可在建表之后单独创建和删除
	CapabilityAlterForeignKey Capability = "alter_foreign_key"
	// CapabilityBatchSelect 一个命令可包含多条查询并依次读取结果集
	CapabilityBatchSelect Capability = "batch_select"
	// CapabilityMigration 支持按映射建表、删表
	CapabilityMigration Capability = "migration"
)

// Capabilities 以集合形式表达后端支持的能力。
type Capabilities map[Capability]bool

// Supports 判断是否支持指定能力。
func (c Capabilities) Supports(cap Capability) bool {
	if c == nil {
		return false
	}
	return c[cap]
}

// NewCapabilities 便捷构造能力集合。
func NewCapabilities(caps ...Capability) Capabilities {
	set := make(Capabilities, len(caps))
	for _, cap := range caps {
		set[cap] = true
	}
	return set
}

type generatorDialect interface {
	Dialect() dialect.Dialect
}

// capabilitiesOf 由生成器的方言推断能力；未知生成器只保证基础能力
func capabilitiesOf(g any) Capabilities {
	caps := NewCapabilities(CapabilityAutoNumber, CapabilityBatchSelect, CapabilityMigration)
	if p, ok := g.(generatorDialect); ok && !p.Dialect().InlineForeignKeys() {
		caps[CapabilityAlterForeignKey] = true
	}
	return caps
}
