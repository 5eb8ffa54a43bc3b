package orm

import (
	"context"

	"relmap/data/db"
	"relmap/data/schema"
	"relmap/logging"
)

// Create 为全部已映射类型建表和索引，随后（后端支持时）单独创建外键
func (d *DataBase) Create(ctx context.Context) error {
	return d.create(ctx, false)
}

// CreateIfNotExist 同 Create，已存在的表、索引与外键跳过
func (d *DataBase) CreateIfNotExist(ctx context.Context) error {
	return d.create(ctx, true)
}

func (d *DataBase) create(ctx context.Context, skipExisting bool) error {
	if !d.caps.Supports(CapabilityMigration) {
		return mappingErrorf("backend does not support schema creation")
	}
	types := d.registry.All()
	for _, dt := range types {
		if skipExisting {
			ok, err := d.executor.ExistsTable(ctx, dt.Table.Name)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
		}
		if err := d.exec(ctx, d.generator.CreateTable(dt.Table)); err != nil {
			return err
		}
		d.logger.Info(ctx, "table created", logging.String("table", dt.Table.Name))
		for _, idx := range dt.Table.Indexes {
			if err := d.exec(ctx, d.generator.CreateIndex(idx)); err != nil {
				return err
			}
		}
	}
	if !d.caps.Supports(CapabilityAlterForeignKey) {
		return nil
	}
	for _, dt := range types {
		for _, fk := range dt.Table.ForeignKeys {
			if skipExisting {
				ok, err := d.executor.ExistsConstraint(ctx, dt.Table.Name, fk.Name)
				if err != nil {
					return err
				}
				if ok {
					continue
				}
			}
			if err := d.exec(ctx, d.generator.CreateForeignKey(fk)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Drop 先删外键，再按注册的逆序删表；不存在的表跳过
func (d *DataBase) Drop(ctx context.Context) error {
	types := d.registry.All()
	existing := make(map[*schema.Table]bool, len(types))
	for _, dt := range types {
		ok, err := d.executor.ExistsTable(ctx, dt.Table.Name)
		if err != nil {
			return err
		}
		existing[dt.Table] = ok
	}
	if d.caps.Supports(CapabilityAlterForeignKey) {
		for _, dt := range types {
			if !existing[dt.Table] {
				continue
			}
			for _, fk := range dt.Table.ForeignKeys {
				ok, err := d.executor.ExistsConstraint(ctx, dt.Table.Name, fk.Name)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := d.exec(ctx, d.generator.DropForeignKey(fk)); err != nil {
					return err
				}
			}
		}
	}
	for i := len(types) - 1; i >= 0; i-- {
		t := types[i].Table
		if !existing[t] {
			continue
		}
		if err := d.exec(ctx, d.generator.DropTable(t)); err != nil {
			return err
		}
		d.logger.Info(ctx, "table dropped", logging.String("table", t.Name))
	}
	return nil
}

func (d *DataBase) exec(ctx context.Context, cmd *db.Command) error {
	if cmd == nil || cmd.Len() == 0 {
		return nil
	}
	_, err := d.executor.Execute(ctx, cmd)
	return err
}
