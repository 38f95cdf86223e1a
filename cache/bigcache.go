// Package cache 提供基于 allegro/bigcache 的定价结果本地缓存。
package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/wyfcoding/quant/config"
)

const (
	defaultLifeWindow = 10 * time.Minute
	defaultShards     = 1024
)

// PriceCache 以确定性请求的规范化键缓存价格。
// BigCache 对所有项使用统一的过期时间，不支持单键 TTL。
type PriceCache struct {
	cache *bigcache.BigCache
}

// NewPriceCache 按配置创建缓存实例。Shards 必须是 2 的幂。
func NewPriceCache(cfg config.CacheConfig) (*PriceCache, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = defaultLifeWindow
	}
	bc := bigcache.DefaultConfig(life)
	bc.Shards = defaultShards
	if cfg.Shards > 0 {
		bc.Shards = cfg.Shards
	}
	if cfg.CleanWindow > 0 {
		bc.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntrySize > 0 {
		bc.MaxEntrySize = cfg.MaxEntrySize
	}
	bc.HardMaxCacheSize = cfg.HardMaxCacheSize
	bc.Verbose = false

	c, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, fmt.Errorf("初始化 bigcache 失败: %w", err)
	}
	return &PriceCache{cache: c}, nil
}

// Get 返回缓存的价格；未命中时 ok 为 false 且 err 为 nil。
func (c *PriceCache) Get(key string) (price float64, ok bool, err error) {
	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("corrupted cache entry %q: %d bytes", key, len(data))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(data)), true, nil
}

// Set 写入价格，按 IEEE-754 位模式存储以保证读回完全一致。
func (c *PriceCache) Set(key string, price float64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(price))
	return c.cache.Set(key, buf[:])
}

// Delete 删除一个或多个键，键不存在时不返回错误。
func (c *PriceCache) Delete(keys ...string) error {
	for _, key := range keys {
		if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Len 返回当前条目数。
func (c *PriceCache) Len() int {
	return c.cache.Len()
}

// Stats 返回底层命中统计。
func (c *PriceCache) Stats() bigcache.Stats {
	return c.cache.Stats()
}

// Reset 清空所有条目（配置热更新后调用）。
func (c *PriceCache) Reset() error {
	return c.cache.Reset()
}

// Close 关闭缓存，释放后台清理协程。
func (c *PriceCache) Close() error {
	return c.cache.Close()
}

// Key 以 "|" 连接各部分生成缓存键；浮点数使用最短可逆表示。
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, "|")
}
