package keygen

import (
	"errors"
	"reflect"
	"sync"
	"time"
)

const (
	// 起始时间戳 (2023-01-01 00:00:00 UTC)
	epoch int64 = 1672531200000

	workerIDBits     = 5
	datacenterIDBits = 5
	sequenceBits     = 12

	maxWorkerID     = -1 ^ (-1 << workerIDBits)     // 31
	maxDatacenterID = -1 ^ (-1 << datacenterIDBits) // 31
	maxSequence     = -1 ^ (-1 << sequenceBits)     // 4095

	workerIDShift      = sequenceBits
	datacenterIDShift  = sequenceBits + workerIDBits
	timestampLeftShift = sequenceBits + workerIDBits + datacenterIDBits
)

var (
	ErrDatacenterOutOfRange = errors.New("keygen: datacenter ID out of range")
	ErrWorkerOutOfRange     = errors.New("keygen: worker ID out of range")
	ErrClockBackwards       = errors.New("keygen: clock moved backwards, refusing to generate id")
)

// Snowflake 雪花算法生成器，为 64 位整数或字符串主键生成单调递增的值
type Snowflake struct {
	mux           sync.Mutex
	datacenterID  int64
	workerID      int64
	sequence      int64
	lastTimestamp int64
	now           func() int64
}

// NewSnowflake 创建生成器
func NewSnowflake(datacenterID, workerID int64) (*Snowflake, error) {
	if datacenterID < 0 || datacenterID > maxDatacenterID {
		return nil, ErrDatacenterOutOfRange
	}
	if workerID < 0 || workerID > maxWorkerID {
		return nil, ErrWorkerOutOfRange
	}
	return &Snowflake{
		datacenterID:  datacenterID,
		workerID:      workerID,
		lastTimestamp: -1,
		now:           func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID 生成下一个ID
func (g *Snowflake) NextID() (int64, error) {
	g.mux.Lock()
	defer g.mux.Unlock()

	now := g.now()
	if now < g.lastTimestamp {
		return 0, ErrClockBackwards
	}

	if now == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= g.lastTimestamp {
				now = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTimestamp = now

	return ((now - epoch) << timestampLeftShift) |
		(g.datacenterID << datacenterIDShift) |
		(g.workerID << workerIDShift) |
		g.sequence, nil
}

func (g *Snowflake) NextKey(t reflect.Type) (any, bool, error) {
	if _, ok := convertID(0, t); !ok {
		return nil, false, nil
	}
	id, err := g.NextID()
	if err != nil {
		return nil, false, err
	}
	v, _ := convertID(id, t)
	return v, true, nil
}

// ID 雪花 ID 的组成部分
type ID struct {
	Time         time.Time
	DatacenterID int64
	WorkerID     int64
	Sequence     int64
}

// Parse 解析ID
func Parse(id int64) ID {
	return ID{
		Time:         time.UnixMilli((id >> timestampLeftShift) + epoch).UTC(),
		DatacenterID: (id >> datacenterIDShift) & maxDatacenterID,
		WorkerID:     (id >> workerIDShift) & maxWorkerID,
		Sequence:     id & maxSequence,
	}
}
