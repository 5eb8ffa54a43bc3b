package interceptor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"relmap/data/orm"
	"relmap/logging"
)

// AuditRecord 一次写操作的审计记录
type AuditRecord struct {
	Op       string    `json:"op"`
	Type     string    `json:"type"`
	Table    string    `json:"table"`
	Key      []any     `json:"key,omitempty"`
	Affected int64     `json:"affected"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher 发布原始消息，*nats.Conn 满足此接口
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// AuditConfig 审计拦截器配置
type AuditConfig struct {
	// SubjectPrefix 主题前缀，完整主题为 {prefix}.{table}.{op}
	SubjectPrefix string
	Logger        logging.Logger
}

// Audit 将写操作的结果发布到 NATS
//
// 发布失败只记录日志，不影响操作结果。
type Audit struct {
	pub    Publisher
	cfg    AuditConfig
	logger logging.Logger
	now    func() time.Time
}

// NewAudit 创建审计拦截器
func NewAudit(pub Publisher, cfg AuditConfig) *Audit {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "relmap.audit"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger().WithFields(logging.Component("orm.interceptor.audit"))
	}
	return &Audit{pub: pub, cfg: cfg, logger: cfg.Logger, now: time.Now}
}

// ConnectNATS 连接 NATS 服务器，调用方负责 Close
func ConnectNATS(url string, name string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	return nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
}

func (a *Audit) Before(ctx context.Context, op orm.Operation) orm.Decision { return orm.Proceed }

func (a *Audit) After(ctx context.Context, op orm.Operation, result any, err error) {
	if !op.Kind().IsWrite() {
		return
	}
	rec := newAuditRecord(op, result, err, a.now())
	data, merr := json.Marshal(rec)
	if merr != nil {
		a.logger.Warn(ctx, "encode audit record failed", logging.Error(merr))
		return
	}
	if perr := a.pub.Publish(a.subject(rec), data); perr != nil {
		a.logger.Warn(ctx, "publish audit record failed",
			logging.String("table", rec.Table), logging.Error(perr))
	}
}

func (a *Audit) subject(rec AuditRecord) string {
	return strings.TrimSuffix(a.cfg.SubjectPrefix, ".") + "." + rec.Table + "." + rec.Op
}

func newAuditRecord(op orm.Operation, result any, err error, at time.Time) AuditRecord {
	dt := op.Target()
	rec := AuditRecord{
		Op:    op.Kind().String(),
		Type:  dt.String(),
		Table: dt.Table.Name,
		At:    at.UTC(),
	}
	if n, ok := result.(int64); ok {
		rec.Affected = n
	}
	if err != nil {
		rec.Error = err.Error()
	}
	var instance any
	switch v := op.(type) {
	case *orm.Insert:
		instance = v.Instance
	case *orm.Update:
		instance = v.Instance
	}
	if instance != nil {
		for _, m := range dt.PrimaryKey() {
			k, _ := m.GetValueForColumn(instance)
			rec.Key = append(rec.Key, k)
		}
	}
	return rec
}
