package interceptor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"relmap/data/db"
	"relmap/data/db/basic"
	"relmap/data/orm"
	"relmap/logging"
)

type Note struct {
	Id       int64
	TenantId string
	Text     string
}

// Ledger 以整数作为租户标识
type Ledger struct {
	Id       int64
	TenantId int64
	Memo     string
}

type Label struct {
	Id   int64
	Name string
}

// counter 统计真正到达数据库的命令
type counter struct {
	*basic.Executor
	queries int
}

func (c *counter) GetScalar(ctx context.Context, cmd *db.Command) (any, error) {
	c.queries++
	return c.Executor.GetScalar(ctx, cmd)
}

func (c *counter) GetDataReader(ctx context.Context, cmd *db.Command) (db.IDataReader, error) {
	c.queries++
	return c.Executor.GetDataReader(ctx, cmd)
}

func openDB(t *testing.T, interceptors ...orm.Interceptor) (*orm.DataBase, *counter) {
	t.Helper()
	return openModels(t, []any{Note{}, Label{}}, interceptors...)
}

// openModels 以给定模型打开内存 sqlite 并建表
func openModels(t *testing.T, models []any, interceptors ...orm.Interceptor) (*orm.DataBase, *counter) {
	t.Helper()
	ctx := context.Background()
	r := orm.NewRegistry()
	_, err := r.DefaultMap(models...)
	require.NoError(t, err)

	exec, err := basic.Open(ctx, db.DBConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	c := &counter{Executor: exec}
	d, err := orm.New(r, c,
		orm.WithLogger(logging.NewNoopLogger()),
		orm.WithInterceptors(interceptors...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Create(ctx))
	return d, c
}

func countNotes(t *testing.T, ctx context.Context, d *orm.DataBase) int64 {
	t.Helper()
	n, err := d.Count(ctx, &orm.Select{DataType: d.Registry().MustGetMap(Note{})})
	require.NoError(t, err)
	return n
}
