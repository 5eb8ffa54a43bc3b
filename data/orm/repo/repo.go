// Package repo 在 orm.DataBase 之上提供按实体类型的通用仓储
//
// Repo[T] 负责主键读写与带过滤、排序、投影的分页列表；
// 字段一律以成员路径给出，并在生成查询前对照类型映射校验。
package repo

import (
	"context"

	"relmap/data/orm"
	"relmap/errors"
)

// Repo 实体 T 的通用仓储
type Repo[T any] struct {
	db *orm.DataBase
	dt *orm.DataType
}

// New 为已映射的类型 T 创建仓储
func New[T any](d *orm.DataBase) (*Repo[T], error) {
	dt, err := orm.TypeFor[T](d.Registry())
	if err != nil {
		return nil, err
	}
	return &Repo[T]{db: d, dt: dt}, nil
}

// DataType 暴露底层映射
func (r *Repo[T]) DataType() *orm.DataType { return r.dt }

// DataBase 返回绑定的 DataBase
func (r *Repo[T]) DataBase() *orm.DataBase { return r.db }

// Get 按主键读取；不存在时返回 NOT_FOUND 错误
func (r *Repo[T]) Get(ctx context.Context, key ...any) (*T, error) {
	v, err := r.db.SelectByID(ctx, r.dt, key...)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.Errorf(errors.ErrCodeNotFound, "%s %v not found", r.dt, key)
	}
	return v.(*T), nil
}

// Exists 按主键探测是否存在，只查询主键列
func (r *Repo[T]) Exists(ctx context.Context, key ...any) (bool, error) {
	s, err := r.keySelect(key)
	if err != nil {
		return false, err
	}
	n, err := r.db.Count(ctx, s)
	return n > 0, err
}

func (r *Repo[T]) keySelect(key []any) (*orm.Select, error) {
	pk := r.dt.PrimaryKey()
	if len(pk) != len(key) {
		return nil, errors.NewMappingError("%s expects %d key values, got %d", r.dt, len(pk), len(key))
	}
	s := &orm.Select{DataType: r.dt}
	for i, m := range pk {
		if err := s.Filter(m.Expression(), orm.Equal, key[i]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create 校验并插入
func (r *Repo[T]) Create(ctx context.Context, entity *T) error {
	return r.db.InsertObject(ctx, entity)
}

// CreateAll 先校验全部实体，全部通过后再逐个插入
func (r *Repo[T]) CreateAll(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		if errs := r.dt.Validate(e); len(errs) > 0 {
			return errs
		}
	}
	for _, e := range entities {
		if err := r.db.InsertObject(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Update 按主键更新全部成员
func (r *Repo[T]) Update(ctx context.Context, entity *T) error {
	return r.db.UpdateObject(ctx, entity)
}

// Save 未保存时插入，否则更新
func (r *Repo[T]) Save(ctx context.Context, entity *T) error {
	return r.db.Save(ctx, entity)
}

// Delete 逐级删除实体
func (r *Repo[T]) Delete(ctx context.Context, entity *T) error {
	return r.db.DeleteObject(ctx, entity)
}

// DeleteByKey 按主键删除；不存在时返回 NOT_FOUND 错误
func (r *Repo[T]) DeleteByKey(ctx context.Context, key ...any) error {
	e, err := r.Get(ctx, key...)
	if err != nil {
		return err
	}
	return r.db.DeleteObject(ctx, e)
}

// ListAll 全部实体（默认成员）
func (r *Repo[T]) ListAll(ctx context.Context) ([]*T, error) {
	rows, err := r.db.SelectAllOf(ctx, r.dt)
	if err != nil {
		return nil, err
	}
	return orm.Collect[T](rows)
}
