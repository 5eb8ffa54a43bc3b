package orm

// OperationKind 操作种类
type OperationKind int

const (
	KindSelect OperationKind = iota
	KindSelectAggregate
	KindInsert
	KindUpdate
	KindDelete
)

var operationKindNames = [...]string{"select", "select_aggregate", "insert", "update", "delete"}

func (k OperationKind) String() string {
	if int(k) < len(operationKindNames) {
		return operationKindNames[k]
	}
	return "unknown"
}

// IsWrite 是否为写操作
func (k OperationKind) IsWrite() bool {
	return k == KindInsert || k == KindUpdate || k == KindDelete
}

// Operation 提交给 DataBase 的一个物理操作
type Operation interface {
	Kind() OperationKind
	Target() *DataType
}

func (s *Select) Kind() OperationKind          { return KindSelect }
func (s *Select) Target() *DataType            { return s.DataType }
func (a *SelectAggregate) Kind() OperationKind { return KindSelectAggregate }

// Insert 插入一个实例在某一级表中的成员
//
// Members 为空时取该级全部持有值的成员（自增主键为零时除外）。
type Insert struct {
	DataType *DataType
	Instance any
	Members  []*DataMember
}

// Update 更新一个实例在某一级表中的成员
//
// Members 为空时取该级全部非主键成员；Where 为空时按实例主键定位。
type Update struct {
	DataType *DataType
	Instance any
	Members  []*DataMember
	Where    []Filter
}

// Delete 按条件删除某一级表中的行
type Delete struct {
	DataType *DataType
	Where    []Filter
}

func (i *Insert) Kind() OperationKind { return KindInsert }
func (i *Insert) Target() *DataType   { return i.DataType }
func (u *Update) Kind() OperationKind { return KindUpdate }
func (u *Update) Target() *DataType   { return u.DataType }
func (d *Delete) Kind() OperationKind { return KindDelete }
func (d *Delete) Target() *DataType   { return d.DataType }
