package orm

import (
	"context"

	"relmap/data/db"
)

// IDataBase 对象数据库入口。
// 调用方依赖此接口以便在测试中替换；唯一实现为 *DataBase。
type IDataBase interface {
	Registry() *Registry
	Capabilities() Capabilities
	Executor() db.IExecutor

	// 物理操作：每次调度一条命令，经过拦截器链
	Insert(ctx context.Context, op *Insert) (int64, error)
	Update(ctx context.Context, op *Update) (int64, error)
	Delete(ctx context.Context, op *Delete) (int64, error)
	Select(ctx context.Context, s *Select) (*Rows, error)
	SelectInherited(ctx context.Context, s *Select) (*Rows, error)
	SelectScalar(ctx context.Context, a *SelectAggregate) (any, error)
	Count(ctx context.Context, s *Select) (int64, error)

	// 实例操作
	InsertObject(ctx context.Context, instance any) error
	UpdateObject(ctx context.Context, instance any) error
	DeleteObject(ctx context.Context, instance any) error
	Save(ctx context.Context, instance any) error
	InsertAll(ctx context.Context, instance any) error
	Load(ctx context.Context, instance any) (bool, error)
	LoadCollection(ctx context.Context, instance any, member string, fkMember ...string) error

	// 结构
	Create(ctx context.Context) error
	CreateIfNotExist(ctx context.Context) error
	Drop(ctx context.Context) error

	Close() error
}

var _ IDataBase = (*DataBase)(nil)
