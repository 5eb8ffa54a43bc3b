package orm

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"relmap/data/db"
	"relmap/data/db/basic"
	"relmap/logging"
)

// 测试模型

type Country struct {
	Id   int64
	Name string `validate:"required"`
}

type Address struct {
	Id      int64
	Street  string
	City    string `orm:"default"`
	Country *Country
}

type Person struct {
	Id      int64
	Name    string `validate:"required,max=50"`
	Age     int
	Address *Address
	Tags    []string `orm:"json"`
	Pets    []*Pet
}

type Pet struct {
	Id    int64
	Name  string
	Owner *Person
}

type Animal struct {
	Id   int64
	Name string
}

type Dog struct {
	Animal
	Breed string
}

type Puppy struct {
	Dog
	Toy string
}

type OrderLine struct {
	OrderId int64 `orm:"primaryKey"`
	Line    int   `orm:"primaryKey"`
	Product string
}

type Document struct {
	Id    uuid.UUID
	Title string `orm:"index"`
}

// Team 与 Match 之间有两个同类型外键，用于歧义检测
type Team struct {
	Id      int64
	Name    string
	Matches []*Match
}

type Match struct {
	Id   int64
	Home *Team
	Away *Team
}

func allModels() []any {
	return []any{Country{}, Address{}, Person{}, Pet{}, Animal{}, Dog{}, Puppy{}, OrderLine{}, Document{}}
}

// recorder 记录每条命令文本并转交给 sqlite 执行器
type recorder struct {
	*basic.Executor
	commands []string
}

func (r *recorder) Execute(ctx context.Context, cmd *db.Command) (int64, error) {
	r.commands = append(r.commands, cmd.String())
	return r.Executor.Execute(ctx, cmd)
}

func (r *recorder) GetScalar(ctx context.Context, cmd *db.Command) (any, error) {
	r.commands = append(r.commands, cmd.String())
	return r.Executor.GetScalar(ctx, cmd)
}

func (r *recorder) GetDataReader(ctx context.Context, cmd *db.Command) (db.IDataReader, error) {
	r.commands = append(r.commands, cmd.String())
	return r.Executor.GetDataReader(ctx, cmd)
}

func (r *recorder) reset() { r.commands = nil }

// matching 返回包含 fragment 的命令
func (r *recorder) matching(fragment string) []string {
	var out []string
	for _, c := range r.commands {
		if strings.Contains(c, fragment) {
			out = append(out, c)
		}
	}
	return out
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	_, err := r.DefaultMap(allModels()...)
	require.NoError(t, err)
	return r
}

func openDB(t *testing.T, opts ...Option) (*DataBase, *recorder) {
	t.Helper()
	return openWith(t, newRegistry(t), opts...)
}

// openWith 以给定注册表打开内存 sqlite 并建表
func openWith(t *testing.T, r *Registry, opts ...Option) (*DataBase, *recorder) {
	t.Helper()
	ctx := context.Background()
	exec, err := basic.Open(ctx, db.DBConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	rec := &recorder{Executor: exec}

	opts = append([]Option{WithLogger(logging.NewNoopLogger())}, opts...)
	d, err := New(r, rec, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Create(ctx))
	rec.reset()
	return d, rec
}
