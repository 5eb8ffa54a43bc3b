package interceptor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/data/orm"
	"relmap/logging"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	audit := NewAudit(pub, AuditConfig{SubjectPrefix: "app.audit.", Logger: logging.NewNoopLogger()})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	audit.now = func() time.Time { return at }
	d, _ := openDB(t, audit)

	note := &Note{Text: "hello"}
	require.NoError(t, d.InsertObject(ctx, note))
	_, err := orm.SelectAll[Note](ctx, d)
	require.NoError(t, err)
	note.Text = "bye"
	require.NoError(t, d.UpdateObject(ctx, note))

	// 只审计写操作
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "app.audit.Note.insert", pub.msgs[0].subject)
	assert.Equal(t, "app.audit.Note.update", pub.msgs[1].subject)

	var rec AuditRecord
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &rec))
	assert.Equal(t, "insert", rec.Op)
	assert.Equal(t, "Note", rec.Table)
	assert.Equal(t, int64(1), rec.Affected)
	assert.True(t, at.Equal(rec.At))
	// 自增主键在插入之后才回写
	assert.Equal(t, []any{float64(0)}, rec.Key)

	require.NoError(t, json.Unmarshal(pub.msgs[1].data, &rec))
	assert.Equal(t, []any{float64(note.Id)}, rec.Key)
}

func TestAudit_PublishFailureIgnored(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: assert.AnError}
	d, _ := openDB(t, NewAudit(pub, AuditConfig{Logger: logging.NewNoopLogger()}))

	require.NoError(t, d.InsertObject(ctx, &Note{Text: "x"}))
	assert.Empty(t, pub.msgs)
}

func TestNewAuditRecord(t *testing.T) {
	r := orm.NewRegistry()
	_, err := r.DefaultMap(Note{})
	require.NoError(t, err)
	dt := r.MustGetMap(Note{})
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	rec := newAuditRecord(&orm.Delete{DataType: dt}, int64(3), nil, at)
	assert.Equal(t, "delete", rec.Op)
	assert.Equal(t, int64(3), rec.Affected)
	assert.Nil(t, rec.Key)
	assert.Equal(t, time.UTC, rec.At.Location())

	rec = newAuditRecord(&orm.Update{DataType: dt, Instance: &Note{Id: 9}}, nil, assert.AnError, at)
	assert.Equal(t, []any{int64(9)}, rec.Key)
	assert.Equal(t, assert.AnError.Error(), rec.Error)
	assert.Zero(t, rec.Affected)
}

func TestNewAudit_Defaults(t *testing.T) {
	a := NewAudit(&fakePublisher{}, AuditConfig{})
	assert.Equal(t, "relmap.audit.Note.delete", a.subject(AuditRecord{Table: "Note", Op: "delete"}))
}
