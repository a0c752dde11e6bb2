// Package cache 计算结果缓存：进程内 bigcache 作为一级缓存，Redis 作为共享的二级缓存
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	pkgcache "github.com/wyfcoding/insurancefundamentals/pkg/cache"
	"github.com/wyfcoding/insurancefundamentals/pkg/logger"
)

// LocalCache 进程内结果缓存
type LocalCache struct {
	bc *bigcache.BigCache
}

// NewLocalCache 创建进程内缓存，ttl 为条目有效期，maxSizeMB 为内存上限（0 表示不限）
func NewLocalCache(ctx context.Context, ttl time.Duration, maxSizeMB int) (*LocalCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	// 报告体积较大（逐次均值序列可达数 MB），少分片以提高单分片容量
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 8 * 1024
	cfg.HardMaxCacheSize = maxSizeMB
	cfg.Verbose = false
	if ttl < time.Minute {
		cfg.CleanWindow = ttl
	}

	bc, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}
	return &LocalCache{bc: bc}, nil
}

// Get 读取缓存
func (c *LocalCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := c.bc.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set 写入缓存
func (c *LocalCache) Set(_ context.Context, key string, value []byte) error {
	return c.bc.Set(key, value)
}

// Len 当前条目数
func (c *LocalCache) Len() int {
	return c.bc.Len()
}

// Close 停止清理协程并释放内存
func (c *LocalCache) Close() error {
	return c.bc.Close()
}

// RedisCache 基于 Redis 的共享结果缓存
type RedisCache struct {
	client *pkgcache.RedisCache
	ttl    time.Duration
}

// NewRedisCache 创建共享结果缓存
func NewRedisCache(client *pkgcache.RedisCache, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get 读取缓存
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.client.Get(ctx, key)
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, c.ttl)
}

// TieredCache 两级缓存：先查本地，未命中再查远端并回填本地
type TieredCache struct {
	local  domain.ResultCache
	remote domain.ResultCache
}

// NewTieredCache 创建两级缓存，remote 可为 nil
func NewTieredCache(local, remote domain.ResultCache) *TieredCache {
	return &TieredCache{local: local, remote: remote}
}

// Get 读取缓存，远端故障时按未命中处理
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := c.local.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	if c.remote == nil {
		return nil, false, nil
	}

	v, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "remote result cache unavailable", "key", key, "error", err)
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	if err := c.local.Set(ctx, key, v); err != nil {
		logger.Warn(ctx, "failed to backfill local result cache", "key", key, "error", err)
	}
	return v, true, nil
}

// Set 同时写入两级缓存
func (c *TieredCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.local.Set(ctx, key, value); err != nil {
		return fmt.Errorf("local cache: %w", err)
	}
	if c.remote == nil {
		return nil
	}
	if err := c.remote.Set(ctx, key, value); err != nil {
		return fmt.Errorf("remote cache: %w", err)
	}
	return nil
}
