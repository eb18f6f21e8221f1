// 文件: pkg/cache/redis_fetcher.go
// 资源读取的 Redis 缓存层
//
// 多个进程轮询同一本订单簿时，短 TTL 缓存可以把节点请求合并成一次。
// 缓存的是资源原始 JSON，每次调用仍然各自解码一份私有的树。

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"laminar.com/pkg/book"
)

// NewRedisClient 创建 Redis 客户端
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: time.Second,
	})
}

// DefaultFetchTimeout 回源超时
const DefaultFetchTimeout = 10 * time.Second

// RedisFetcher 带缓存的 book.Fetcher
// Redis 不可用时直接回源，不影响读取
type RedisFetcher struct {
	client *redis.Client
	next   book.Fetcher
	ttl    time.Duration
	logger *zap.Logger

	// 单次回源的上限，与调用方的 ctx 无关
	fetchTimeout time.Duration

	// 同一进程内并发 miss 只回源一次
	group singleflight.Group
}

// NewRedisFetcher 创建缓存读取器
func NewRedisFetcher(client *redis.Client, next book.Fetcher, ttl time.Duration, logger *zap.Logger) *RedisFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFetcher{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: logger.Named("cache"),

		fetchTimeout: DefaultFetchTimeout,
	}
}

// SetFetchTimeout 调整回源超时，d <= 0 时忽略
func (f *RedisFetcher) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		f.fetchTimeout = d
	}
}

// Key 缓存 key: resource:{owner}:{type}
func Key(owner, resourceType string) string {
	return "resource:" + owner + ":" + resourceType
}

// GetAccountResource 先查缓存，miss 时回源并写回
func (f *RedisFetcher) GetAccountResource(ctx context.Context, owner, resourceType string) ([]byte, error) {
	key := Key(owner, resourceType)

	data, err := f.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, redis.Nil):
	default:
		f.logger.Warn("redis get failed, falling back", zap.String("key", key), zap.Error(err))
	}

	// 共享的回源不继承任何一个调用方的取消，各调用方只等待自己的 ctx
	ch := f.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.fetchTimeout)
		defer cancel()

		data, err := f.next.GetAccountResource(fctx, owner, resourceType)
		if err != nil {
			return nil, err
		}
		if err := f.client.Set(fctx, key, data, f.ttl).Err(); err != nil {
			f.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Invalidate 删除缓存
func (f *RedisFetcher) Invalidate(ctx context.Context, owner, resourceType string) error {
	if err := f.client.Del(ctx, Key(owner, resourceType)).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", resourceType, err)
	}
	return nil
}

// Ping 检查连接
func (f *RedisFetcher) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}
