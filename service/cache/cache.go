/*
 * @module service/cache/cache
 * @description 统计结果缓存，多实例部署使用Redis，单实例或未配置Redis时使用进程内缓存
 * @architecture 基础设施层 - 缓存
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 统计请求 -> 读缓存 -> 未命中时计算并写入 -> 数据变更时按前缀失效
 * @rules 缓存值以JSON序列化；缓存故障不影响统计结果，只记录日志
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/statistics/service.go, service/init.go
 */

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache 缓存接口
type Cache interface {
	// Get 读取缓存到 dest，未命中返回 false
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Set 写入缓存
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// DeletePrefix 删除指定前缀的全部键
	DeletePrefix(ctx context.Context, prefix string) error
}

// RedisCache Redis缓存
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建Redis缓存
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get 读取缓存
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("读取缓存失败: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("解析缓存失败: %w", err)
	}
	return true, nil
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	return nil
}

// DeletePrefix 按前缀删除，使用SCAN避免阻塞Redis
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("扫描缓存键失败: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("删除缓存失败: %w", err)
	}
	return nil
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache 进程内缓存
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache 创建进程内缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get 读取缓存，过期视为未命中
func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || (!entry.expiresAt.IsZero() && c.now().After(entry.expiresAt)) {
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, fmt.Errorf("解析缓存失败: %w", err)
	}
	return true, nil
}

// Set 写入缓存，ttl<=0 表示不过期
func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}
	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// DeletePrefix 按前缀删除
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Len 当前缓存条目数
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NopCache 不缓存
type NopCache struct{}

func (NopCache) Get(context.Context, string, interface{}) (bool, error)        { return false, nil }
func (NopCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (NopCache) DeletePrefix(context.Context, string) error                    { return nil }
