// Package orm 将 Go 结构体映射到关系表
//
// Registry 保存类型到表的映射（DataType/DataMember）；Select/Insert/Update/Delete
// 描述对象层操作；DataBase 把操作翻译为 data/db/sql 的命令，经 data/db.IExecutor
// 执行，并把结果行物化为实例。多级继承以嵌入表达，每一级一张表，按主键相连。
package orm

import (
	"context"
	"reflect"
	"strconv"
	"time"

	"relmap/data/db"
	"relmap/data/db/dialect"
	dbsql "relmap/data/db/sql"
	"relmap/data/orm/keygen"
	"relmap/logging"
)

// DataBase 一个工作单元内的对象数据库
//
// DataBase 不是并发安全的：表门面缓存是普通 map，应由一个逻辑工作单元独占使用，
// 用完后 Close。Registry 可以在多个 DataBase 之间共享。
type DataBase struct {
	registry  *Registry
	executor  db.IExecutor
	generator dbsql.IGenerator
	logger    logging.Logger
	chain     interceptorChain
	keys      keygen.Generator
	caps      Capabilities
	tables    map[tableKey]any
}

// Option 配置 DataBase
type Option func(*DataBase)

// WithLogger 设置日志
func WithLogger(l logging.Logger) Option {
	return func(d *DataBase) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithInterceptors 追加拦截器，按顺序执行
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(d *DataBase) {
		d.chain = append(d.chain, interceptors...)
	}
}

// WithKeyGenerator 为非自增的空主键生成值
func WithKeyGenerator(g keygen.Generator) Option {
	return func(d *DataBase) { d.keys = g }
}

// WithGenerator 指定命令生成器，默认按执行器的方言创建
func WithGenerator(g dbsql.IGenerator) Option {
	return func(d *DataBase) {
		if g != nil {
			d.generator = g
		}
	}
}

// New 创建 DataBase
func New(registry *Registry, executor db.IExecutor, opts ...Option) (*DataBase, error) {
	if registry == nil || executor == nil {
		return nil, mappingErrorf("registry and executor are required")
	}
	d := &DataBase{
		registry: registry,
		executor: executor,
		logger:   logging.GetLogger().WithFields(logging.Component("orm")),
		tables:   make(map[tableKey]any),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.generator == nil {
		dl := dialect.New("")
		if p, ok := executor.(generatorDialect); ok {
			dl = p.Dialect()
		}
		d.generator = dbsql.New(dl)
	}
	d.caps = capabilitiesOf(d.generator)
	return d, nil
}

// Registry 映射注册表
func (d *DataBase) Registry() *Registry { return d.registry }

// Executor 底层执行器
func (d *DataBase) Executor() db.IExecutor { return d.executor }

// Generator 命令生成器
func (d *DataBase) Generator() dbsql.IGenerator { return d.generator }

// Capabilities 当前后端支持的能力
func (d *DataBase) Capabilities() Capabilities { return d.caps }

// Close 释放执行器
func (d *DataBase) Close() error {
	d.tables = nil
	return d.executor.Close()
}

// Map 样本类型的映射
func (d *DataBase) Map(sample any) (*DataType, error) { return d.registry.GetMap(sample) }

// intercept 执行前置拦截、调度与后置拦截
func (d *DataBase) intercept(ctx context.Context, op Operation, run func() (any, error)) (any, error) {
	decision := d.chain.before(ctx, op)
	if err := decision.Err(); err != nil {
		d.logger.Debug(ctx, "operation rejected by interceptor",
			logging.String("op", op.Kind().String()),
			logging.String("type", op.Target().String()),
			logging.Error(err))
		d.chain.after(ctx, op, nil, err)
		return nil, err
	}
	if v, skip := decision.Skipped(); skip {
		d.logger.Debug(ctx, "operation skipped by interceptor",
			logging.String("op", op.Kind().String()),
			logging.String("type", op.Target().String()))
		d.chain.after(ctx, op, v, nil)
		return v, nil
	}
	start := time.Now()
	result, err := run()
	fields := []logging.Field{
		logging.String("op", op.Kind().String()),
		logging.String("table", op.Target().Table.Name),
		logging.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, logging.Error(err))
	}
	d.logger.Debug(ctx, "orm operation", fields...)
	d.chain.after(ctx, op, result, err)
	return result, err
}

// Insert 物理插入一级表
func (d *DataBase) Insert(ctx context.Context, op *Insert) (int64, error) {
	if op == nil || op.DataType == nil || op.Instance == nil {
		return 0, mappingErrorf("insert requires a data type and an instance")
	}
	if errs := op.DataType.validateLevel(op.Instance); len(errs) > 0 {
		return 0, errs
	}
	return d.execWrite(ctx, op, func() (*db.Command, error) {
		members := op.Members
		if len(members) == 0 {
			members = insertMembers(op.DataType, op.Instance)
		}
		ins := &dbsql.Insert{Table: op.DataType.Table}
		for _, m := range members {
			v, err := m.GetValueForColumn(op.Instance)
			if err != nil {
				return nil, err
			}
			ins.Values = append(ins.Values, dbsql.ColumnValue{Column: m.Column, Value: v})
		}
		return d.generator.Insert(ins), nil
	})
}

// insertMembers 持有值的本级成员；值为零的自增主键交给后端生成
func insertMembers(dt *DataType, instance any) []*DataMember {
	var out []*DataMember
	for _, m := range dt.DataMembers {
		v, ok := m.Member.Get(instance)
		if !ok || v == nil {
			continue
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			continue
		}
		if m.Column.IsAutoNumber && isZeroValue(v) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Update 物理更新一级表；没有可更新成员时不执行并返回 0
//
// Where 为空时以实例主键补全后再交给拦截器，拦截器追加的条件与主键条件同时生效。
func (d *DataBase) Update(ctx context.Context, op *Update) (int64, error) {
	if op == nil || op.DataType == nil || op.Instance == nil {
		return 0, mappingErrorf("update requires a data type and an instance")
	}
	if errs := op.DataType.validateLevel(op.Instance); len(errs) > 0 {
		return 0, errs
	}
	upd := *op
	if len(upd.Members) == 0 {
		for _, m := range upd.DataType.DataMembers {
			if !m.Column.IsPrimaryKey {
				upd.Members = append(upd.Members, m)
			}
		}
	}
	if len(upd.Members) == 0 {
		return 0, nil
	}
	if len(upd.Where) == 0 {
		pk, err := PrimaryKeyFilter(upd.DataType, upd.Instance)
		if err != nil {
			return 0, err
		}
		upd.Where = []Filter{pk}
	}
	return d.execWrite(ctx, &upd, func() (*db.Command, error) {
		t := &translator{dtype: upd.DataType}
		where, err := t.filters(upd.Where)
		if err != nil {
			return nil, err
		}
		desc := &dbsql.Update{Table: upd.DataType.Table, Where: where}
		for _, m := range upd.Members {
			v, err := m.GetValueForColumn(upd.Instance)
			if err != nil {
				return nil, err
			}
			desc.Set = append(desc.Set, dbsql.ColumnValue{Column: m.Column, Value: v})
		}
		return d.generator.Update(desc), nil
	})
}

// Delete 物理删除一级表中满足条件的行
func (d *DataBase) Delete(ctx context.Context, op *Delete) (int64, error) {
	if op == nil || op.DataType == nil {
		return 0, mappingErrorf("delete requires a data type")
	}
	return d.execWrite(ctx, op, func() (*db.Command, error) {
		t := &translator{dtype: op.DataType}
		where, err := t.filters(op.Where)
		if err != nil {
			return nil, err
		}
		return d.generator.Delete(&dbsql.Delete{Table: op.DataType.Table, Where: where}), nil
	})
}

// execWrite 前置拦截之后再翻译，拦截器对操作的修改因此都会生效
func (d *DataBase) execWrite(ctx context.Context, op Operation, build func() (*db.Command, error)) (int64, error) {
	result, err := d.intercept(ctx, op, func() (any, error) {
		cmd, err := build()
		if err != nil {
			return nil, err
		}
		return d.executor.Execute(ctx, cmd)
	})
	if err != nil {
		return 0, err
	}
	return toInt64(result), nil
}

// Select 执行查询，返回惰性游标；调用方负责 Close
//
// 没有投影成员时按默认策略展开。映射错误在任何 I/O 之前返回。
func (d *DataBase) Select(ctx context.Context, s *Select) (*Rows, error) {
	if s == nil || s.DataType == nil {
		return nil, mappingErrorf("select requires a data type")
	}
	if len(s.AllMembers()) == 0 {
		if err := s.AddDefaultMembers(); err != nil {
			return nil, err
		}
	}
	result, err := d.intercept(ctx, s, func() (any, error) {
		t := &translator{sel: s, dtype: s.DataType}
		desc, err := t.selectCommand(s)
		if err != nil {
			return nil, err
		}
		reader, err := d.executor.GetDataReader(ctx, d.generator.Select(desc))
		if err != nil {
			return nil, err
		}
		return newRows(reader, []*Select{s}), nil
	})
	return rowsOf(result, err)
}

func rowsOf(result any, err error) (*Rows, error) {
	if err != nil {
		return nil, err
	}
	if rows, ok := result.(*Rows); ok && rows != nil {
		return rows, nil
	}
	return emptyRows(), nil
}

// SelectInherited 多态查询：根类型（非抽象时）及全部子孙类型各一个子查询，
// 合并为一个批量命令执行一次，按构建顺序读取各结果集，每行物化为对应子类型。
func (d *DataBase) SelectInherited(ctx context.Context, s *Select) (*Rows, error) {
	if s == nil || s.DataType == nil {
		return nil, mappingErrorf("select requires a data type")
	}
	defaults := len(s.AllMembers()) == 0
	if defaults {
		if err := s.AddDefaultMembers(); err != nil {
			return nil, err
		}
	}
	var types []*DataType
	if !s.DataType.Abstract {
		types = append(types, s.DataType)
	}
	types = append(types, s.DataType.SubDataTypesRecursive()...)
	if len(types) == 0 {
		return emptyRows(), nil
	}

	result, err := d.intercept(ctx, s, func() (any, error) {
		cmd := &db.Command{}
		var selects []*Select
		for _, dt := range types {
			sub, err := s.rebase(dt, defaults)
			if err != nil {
				return nil, err
			}
			t := &translator{sel: sub, dtype: dt}
			desc, err := t.selectCommand(sub)
			if err != nil {
				return nil, err
			}
			cmd.Append(d.generator.Select(desc))
			selects = append(selects, sub)
		}
		reader, err := d.executor.GetDataReader(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return newRows(reader, selects), nil
	})
	return rowsOf(result, err)
}

// rebase 为子类型 dt 构造同样成员、条件、排序与分页的查询；
// defaults 为真时子类型按自身的默认成员补充投影
func (s *Select) rebase(dt *DataType, defaults bool) (*Select, error) {
	if dt == s.DataType {
		return s, nil
	}
	sub := &Select{DataType: dt, Where: s.Where, Limit: s.Limit}
	for _, m := range s.AllMembers() {
		if _, err := sub.AddMember(m.Path()); err != nil {
			return nil, err
		}
	}
	if defaults {
		if err := sub.AddDefaultMembers(); err != nil {
			return nil, err
		}
	}
	for _, o := range s.OrderBy {
		path := o.Path
		if path == "" {
			path = o.Member.Expression()
		}
		ref, err := sub.Ref(path)
		if err != nil {
			return nil, err
		}
		sub.OrderBy = append(sub.OrderBy, OrderBy{MemberRef: ref, Direction: o.Direction})
	}
	return sub, nil
}

// SelectScalar 执行聚合查询，返回首行首列
func (d *DataBase) SelectScalar(ctx context.Context, a *SelectAggregate) (any, error) {
	if a == nil || a.DataType == nil {
		return nil, mappingErrorf("aggregate select requires a data type")
	}
	return d.intercept(ctx, a, func() (any, error) {
		cmd, err := d.aggregateCommand(a)
		if err != nil {
			return nil, err
		}
		return d.executor.GetScalar(ctx, cmd)
	})
}

// SelectAggregate 执行聚合查询，逐行返回别名到值的记录
func (d *DataBase) SelectAggregate(ctx context.Context, a *SelectAggregate) ([]db.Record, error) {
	if a == nil || a.DataType == nil {
		return nil, mappingErrorf("aggregate select requires a data type")
	}
	result, err := d.intercept(ctx, a, func() (any, error) {
		cmd, err := d.aggregateCommand(a)
		if err != nil {
			return nil, err
		}
		reader, err := d.executor.GetDataReader(ctx, cmd)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		var records []db.Record
		for reader.Next() {
			records = append(records, reader.Record())
		}
		return records, reader.Err()
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]db.Record)
	return records, nil
}

func (d *DataBase) aggregateCommand(a *SelectAggregate) (*db.Command, error) {
	t := &translator{sel: &a.Select, dtype: a.DataType}
	desc, err := t.aggregateCommand(a)
	if err != nil {
		return nil, err
	}
	return d.generator.SelectAggregate(desc), nil
}

// Count 满足 s 条件的行数（忽略排序与分页）
func (d *DataBase) Count(ctx context.Context, s *Select) (int64, error) {
	v, err := d.SelectScalar(ctx, NewCountSelect(s))
	if err != nil {
		return 0, err
	}
	return toInt64(v), nil
}

// toInt64 驱动返回的计数值可能是多种数值或文本形式
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		i, _ := strconv.ParseInt(string(n), 10, 64)
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
