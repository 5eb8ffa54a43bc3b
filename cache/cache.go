// Package cache 提供进程内的泛型 LRU + TTL 缓存
//
// 主要用于缓存查询结果计数等可按表失效的小值。
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Cache 泛型缓存，超出容量时驱逐最久未使用的条目，TTL 基于写入时间
type Cache[K comparable, V any] struct {
	config Config

	items   map[K]*list.Element
	lruList *list.List

	mu    sync.Mutex
	stats Stats
}

type entry[K comparable, V any] struct {
	key      K
	value    V
	storedAt time.Time
}

// Config 缓存配置
type Config struct {
	// Name 缓存名称（用于日志和统计）
	Name string

	// MaxSize 最大条目数，0 表示不限制
	MaxSize int

	// TTL 过期时间，0 表示永不过期
	TTL time.Duration
}

// Stats 统计信息
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// New 创建缓存
func New[K comparable, V any](config Config) *Cache[K, V] {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	return &Cache[K, V]{
		config:  config,
		items:   make(map[K]*list.Element),
		lruList: list.New(),
	}
}

// Get 获取未过期的值
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[K, V]) getLocked(key K) (value V, found bool) {
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return value, false
	}
	e := el.Value.(*entry[K, V])
	if c.config.TTL > 0 && time.Since(e.storedAt) >= c.config.TTL {
		c.removeLocked(el)
		c.stats.Misses++
		return value, false
	}
	c.lruList.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Set 写入或覆盖
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *Cache[K, V]) setLocked(key K, value V) {
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.storedAt = time.Now()
		c.lruList.MoveToFront(el)
		return
	}
	if c.config.MaxSize > 0 && len(c.items) >= c.config.MaxSize {
		if oldest := c.lruList.Back(); oldest != nil {
			c.removeLocked(oldest)
			c.stats.Evictions++
		}
	}
	c.items[key] = c.lruList.PushFront(&entry[K, V]{key: key, value: value, storedAt: time.Now()})
}

// GetOrLoad 命中则返回缓存值，否则调用 load 并缓存其结果（load 出错时不缓存）
//
// load 在锁外执行，并发未命中时可能被调用多次。
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Delete 删除条目，返回是否存在
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeLocked(el)
	return true
}

// DeleteFunc 删除所有满足条件的条目，返回删除数量
func (c *Cache[K, V]) DeleteFunc(match func(key K, value V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for el := c.lruList.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry[K, V])
		if match(e.key, e.value) {
			c.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

// Clear 清空
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.lruList.Init()
}

// Len 当前条目数（含尚未清理的过期条目）
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats 统计副本
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.items)
	return s
}

func (c *Cache[K, V]) removeLocked(el *list.Element) {
	e := c.lruList.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
}

func (c *Cache[K, V]) String() string {
	s := c.Stats()
	return fmt.Sprintf("Cache[%s]: size=%d/%d, hits=%d, misses=%d, evictions=%d",
		c.config.Name, s.Size, c.config.MaxSize, s.Hits, s.Misses, s.Evictions)
}
