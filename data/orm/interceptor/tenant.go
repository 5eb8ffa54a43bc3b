package interceptor

import (
	"context"

	"relmap/data/orm"
	"relmap/errors"
)

type tenantKey struct{}

// WithTenant 在上下文中携带租户标识
func WithTenant(ctx context.Context, tenant any) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFrom 读取上下文中的租户标识
func TenantFrom(ctx context.Context) (any, bool) {
	v := ctx.Value(tenantKey{})
	return v, v != nil
}

// Tenant 对拥有 member 成员的类型，为查询、更新与删除追加 member = 当前租户 的条件，
// 插入时把当前租户写入实例。上下文中没有租户时不做任何处理。
//
// 租户值按成员声明类型转换；无法转换时拒绝操作，返回 ErrCodeInvalidInput。
type Tenant struct {
	member string
}

// NewTenant 以成员路径创建租户拦截器
func NewTenant(member string) *Tenant {
	return &Tenant{member: member}
}

func (t *Tenant) Before(ctx context.Context, op orm.Operation) orm.Decision {
	tenant, ok := TenantFrom(ctx)
	if !ok {
		return orm.Proceed
	}
	var err error
	switch v := op.(type) {
	case *orm.Select:
		err = t.filter(v, tenant)
	case *orm.SelectAggregate:
		err = t.filter(&v.Select, tenant)
	case *orm.Update:
		v.Where, err = t.where(v.DataType, v.Where, tenant)
	case *orm.Delete:
		v.Where, err = t.where(v.DataType, v.Where, tenant)
	case *orm.Insert:
		err = t.assign(v.DataType, v.Instance, tenant)
	}
	if err != nil {
		return orm.Fail(errors.WrapError(err, errors.ErrCodeInvalidInput, "tenant").WithDetail("member", t.member))
	}
	return orm.Proceed
}

func (t *Tenant) filter(s *orm.Select, tenant any) error {
	m := s.DataType.FindMember(t.member)
	if m == nil {
		return nil
	}
	value, err := m.Coerce(tenant)
	if err != nil {
		return err
	}
	return s.Filter(t.member, orm.Equal, value)
}

// where 写操作按级执行，只处理本级映射了该成员的表
func (t *Tenant) where(dt *orm.DataType, where []orm.Filter, tenant any) ([]orm.Filter, error) {
	m := dt.Member(t.member)
	if m == nil {
		return where, nil
	}
	value, err := m.Coerce(tenant)
	if err != nil {
		return where, err
	}
	return append(where, orm.ValueCompareFilter{MemberRef: orm.Ref(m), Operator: orm.Equal, Value: value}), nil
}

func (t *Tenant) assign(dt *orm.DataType, instance any, tenant any) error {
	m := dt.Member(t.member)
	if m == nil {
		return nil
	}
	value, err := m.Coerce(tenant)
	if err != nil {
		return err
	}
	return m.Member.Set(instance, value)
}

func (t *Tenant) After(ctx context.Context, op orm.Operation, result any, err error) {}
