package interceptor

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"relmap/cache"
	"relmap/data/orm"
	"relmap/errors"
	"relmap/logging"
)

// CountStore 行数缓存的存储，条目登记其涉及的表以便按表失效
type CountStore interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, tables []string, n int64) error
	Invalidate(ctx context.Context, table string) error
}

// CountCache 缓存 Count 查询的结果，任何写操作成功后使涉及该表的条目失效
type CountCache struct {
	store  CountStore
	logger logging.Logger

	served sync.Map // 由缓存应答的操作，After 中不回写
}

// NewCountCache 创建行数缓存拦截器
func NewCountCache(store CountStore, logger logging.Logger) *CountCache {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &CountCache{store: store, logger: logger.WithFields(logging.Component("orm.interceptor.countcache"))}
}

func (c *CountCache) Before(ctx context.Context, op orm.Operation) orm.Decision {
	a, ok := op.(*orm.SelectAggregate)
	if !ok || !a.IsCount() {
		return orm.Proceed
	}
	n, hit, err := c.store.Get(ctx, a.Key())
	if err != nil {
		c.logger.Warn(ctx, "count cache read failed", logging.Error(err))
		return orm.Proceed
	}
	if !hit {
		return orm.Proceed
	}
	c.served.Store(op, struct{}{})
	return orm.SkipWith(n)
}

func (c *CountCache) After(ctx context.Context, op orm.Operation, result any, err error) {
	if err != nil {
		return
	}
	if op.Kind().IsWrite() {
		if ierr := c.store.Invalidate(ctx, op.Target().Table.Name); ierr != nil {
			c.logger.Warn(ctx, "count cache invalidation failed", logging.Error(ierr))
		}
		return
	}
	a, ok := op.(*orm.SelectAggregate)
	if !ok || !a.IsCount() {
		return
	}
	if _, served := c.served.LoadAndDelete(op); served {
		return
	}
	n, ok := countValue(result)
	if !ok {
		return
	}
	if serr := c.store.Set(ctx, a.Key(), a.Tables(), n); serr != nil {
		c.logger.Warn(ctx, "count cache write failed", logging.Error(serr))
	}
}

func countValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case []byte:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

type countEntry struct {
	n      int64
	tables []string
}

// LocalCountStore 进程内存储，基于 LRU + TTL 缓存
type LocalCountStore struct {
	c *cache.Cache[string, countEntry]
}

// NewLocalCountStore 创建进程内存储
func NewLocalCountStore(maxSize int, ttl time.Duration) *LocalCountStore {
	return &LocalCountStore{c: cache.New[string, countEntry](cache.Config{Name: "orm.count", MaxSize: maxSize, TTL: ttl})}
}

func (s *LocalCountStore) Get(ctx context.Context, key string) (int64, bool, error) {
	e, ok := s.c.Get(key)
	return e.n, ok, nil
}

func (s *LocalCountStore) Set(ctx context.Context, key string, tables []string, n int64) error {
	s.c.Set(key, countEntry{n: n, tables: tables})
	return nil
}

func (s *LocalCountStore) Invalidate(ctx context.Context, table string) error {
	s.c.DeleteFunc(func(_ string, e countEntry) bool {
		return slices.Contains(e.tables, table)
	})
	return nil
}

// Stats 命中统计
func (s *LocalCountStore) Stats() cache.Stats { return s.c.Stats() }

// redisClient 所需的 go-redis 命令子集，便于测试替换
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCountStore 多进程共享的存储
//
// 条目键为 {prefix}:count:{key}；每张表一个集合 {prefix}:tables:{table} 登记相关条目。
type RedisCountStore struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedisCountStore 以已有客户端创建存储；ttl 为 0 时条目不过期
func NewRedisCountStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCountStore {
	return newRedisCountStore(client, prefix, ttl)
}

func newRedisCountStore(client redisClient, prefix string, ttl time.Duration) *RedisCountStore {
	if prefix == "" {
		prefix = "relmap"
	}
	return &RedisCountStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisCountStore) entryKey(key string) string   { return s.prefix + ":count:" + key }
func (s *RedisCountStore) tableKey(table string) string { return s.prefix + ":tables:" + table }

func (s *RedisCountStore) Get(ctx context.Context, key string) (int64, bool, error) {
	n, err := s.client.Get(ctx, s.entryKey(key)).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.WrapError(err, errors.ErrCodeCache, "redis get").WithDetail("key", key)
	}
	return n, true, nil
}

func (s *RedisCountStore) Set(ctx context.Context, key string, tables []string, n int64) error {
	k := s.entryKey(key)
	if err := s.client.Set(ctx, k, n, s.ttl).Err(); err != nil {
		return errors.WrapError(err, errors.ErrCodeCache, "redis set").WithDetail("key", key)
	}
	for _, t := range tables {
		if err := s.client.SAdd(ctx, s.tableKey(t), k).Err(); err != nil {
			return errors.WrapError(err, errors.ErrCodeCache, "redis sadd").WithDetail("table", t)
		}
	}
	return nil
}

func (s *RedisCountStore) Invalidate(ctx context.Context, table string) error {
	tk := s.tableKey(table)
	keys, err := s.client.SMembers(ctx, tk).Result()
	if err != nil && err != redis.Nil {
		return errors.WrapError(err, errors.ErrCodeCache, "redis smembers").WithDetail("table", table)
	}
	if err := s.client.Del(ctx, append(keys, tk)...).Err(); err != nil {
		return errors.WrapError(err, errors.ErrCodeCache, "redis del").WithDetail("table", table)
	}
	return nil
}
