package cache

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCache_BasicOperations 测试基本操作
func TestCache_BasicOperations(t *testing.T) {
	c := New[string, int64](Config{Name: "count", MaxSize: 100, TTL: time.Minute})

	c.Set("person|abc", 100)
	value, found := c.Get("person|abc")
	assert.True(t, found)
	assert.Equal(t, int64(100), value)

	_, found = c.Get("nonexistent")
	assert.False(t, found)

	assert.True(t, c.Delete("person|abc"))
	assert.False(t, c.Delete("person|abc"))
	assert.Equal(t, 0, c.Len())
}

// TestCache_LRUEviction 测试 LRU 驱逐
func TestCache_LRUEviction(t *testing.T) {
	c := New[int, string](Config{MaxSize: 3})

	c.Set(1, "one")
	c.Set(2, "two")
	c.Set(3, "three")

	// 访问 key=1，使其成为最近使用的
	_, found := c.Get(1)
	require.True(t, found)

	c.Set(4, "four")
	assert.Equal(t, 3, c.Len())

	_, found = c.Get(2)
	assert.False(t, found)
	for _, k := range []int{1, 3, 4} {
		_, found = c.Get(k)
		assert.True(t, found, "key %d", k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

// TestCache_TTLExpiration 测试 TTL 过期
func TestCache_TTLExpiration(t *testing.T) {
	c := New[string, int](Config{TTL: 50 * time.Millisecond})

	c.Set("k", 1)
	_, found := c.Get("k")
	assert.True(t, found)

	time.Sleep(80 * time.Millisecond)
	_, found = c.Get("k")
	assert.False(t, found)
	assert.Equal(t, 0, c.Len())
}

// TestCache_GetOrLoad 测试加载回填
func TestCache_GetOrLoad(t *testing.T) {
	c := New[string, int64](Config{MaxSize: 10})
	calls := 0
	load := func() (int64, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrLoad("k", load)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = c.GetOrLoad("k", load)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.Equal(t, 1, calls)

	_, err = c.GetOrLoad("bad", func() (int64, error) { return 0, errors.New("boom") })
	assert.Error(t, err)
	_, found := c.Get("bad")
	assert.False(t, found)
}

// TestCache_DeleteFunc 测试按条件失效
func TestCache_DeleteFunc(t *testing.T) {
	c := New[string, int64](Config{})
	c.Set("person|1", 1)
	c.Set("person|2", 2)
	c.Set("address|1", 3)

	removed := c.DeleteFunc(func(key string, _ int64) bool {
		return strings.HasPrefix(key, "person|")
	})
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

// TestCache_Stats 测试统计信息
func TestCache_Stats(t *testing.T) {
	c := New[int, int](Config{Name: "stats"})
	c.Set(1, 1)
	c.Get(1)
	c.Get(2)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.Contains(t, c.String(), "Cache[stats]")
}

// TestCache_ConcurrentAccess 测试并发访问
func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int](Config{MaxSize: 50})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Set(base*1000+i, i)
				c.Get(base*1000 + i/2)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}

// BenchmarkCache_Get 基准测试：命中读取
func BenchmarkCache_Get(b *testing.B) {
	c := New[int, int](Config{MaxSize: 1000})
	for i := 0; i < 1000; i++ {
		c.Set(i, i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(i % 1000)
	}
}
