package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingFetcher struct {
	calls atomic.Int32
	data  []byte
	err   error
	delay time.Duration
}

func (f *countingFetcher) GetAccountResource(context.Context, string, string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.data, f.err
}

// setupRedis 连接本地 Redis，不可用时跳过
func setupRedis(t *testing.T, next *countingFetcher) *RedisFetcher {
	t.Helper()

	client := NewRedisClient("localhost:6379")
	t.Cleanup(func() { client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skipping test; redis not available: %v", err)
	}

	f := NewRedisFetcher(client, next, time.Minute, zap.NewNop())
	require.NoError(t, f.Invalidate(context.Background(), "0xb", t.Name()))
	return f
}

func TestRedisFetcher_HitAfterMiss(t *testing.T) {
	next := &countingFetcher{data: []byte(`{"bids":{}}`)}
	f := setupRedis(t, next)
	ctx := context.Background()

	data, err := f.GetAccountResource(ctx, "0xb", t.Name())
	require.NoError(t, err)
	assert.Equal(t, next.data, data)

	data, err = f.GetAccountResource(ctx, "0xb", t.Name())
	require.NoError(t, err)
	assert.Equal(t, next.data, data)
	assert.EqualValues(t, 1, next.calls.Load())

	require.NoError(t, f.Invalidate(ctx, "0xb", t.Name()))
	_, err = f.GetAccountResource(ctx, "0xb", t.Name())
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.calls.Load())
}

func TestRedisFetcher_ErrorNotCached(t *testing.T) {
	next := &countingFetcher{err: errors.New("node down")}
	f := setupRedis(t, next)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.GetAccountResource(ctx, "0xb", t.Name())
		require.ErrorIs(t, err, next.err)
	}
	assert.EqualValues(t, 2, next.calls.Load())
}

func TestRedisFetcher_ConcurrentMissesCollapse(t *testing.T) {
	next := &countingFetcher{data: []byte(`{}`), delay: 50 * time.Millisecond}
	f := setupRedis(t, next)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.GetAccountResource(context.Background(), "0xb", t.Name())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, next.calls.Load(), int32(2))
}

func TestRedisFetcher_FallsBackWhenRedisDown(t *testing.T) {
	client := NewRedisClient("127.0.0.1:1")
	t.Cleanup(func() { client.Close() })

	next := &countingFetcher{data: []byte(`{"asks":{}}`)}
	f := NewRedisFetcher(client, next, time.Minute, zap.NewNop())

	data, err := f.GetAccountResource(context.Background(), "0xb", "asks")
	require.NoError(t, err)
	assert.Equal(t, next.data, data)
	assert.EqualValues(t, 1, next.calls.Load())
}

// blockingFetcher 第一次调用时通知 started，直到 release 关闭才返回
type blockingFetcher struct {
	calls   atomic.Int32
	once    sync.Once
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (f *blockingFetcher) GetAccountResource(ctx context.Context, _, _ string) ([]byte, error) {
	f.calls.Add(1)
	f.once.Do(func() { close(f.started) })
	<-f.release
	f.ctxErr = ctx.Err()
	return []byte(`{"bids":{}}`), nil
}

func TestRedisFetcher_CanceledCallerDoesNotFailOthers(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	next := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	f := NewRedisFetcher(client, next, time.Minute, zap.NewNop())

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.GetAccountResource(leaderCtx, "0xb", "bids")
		leaderErr <- err
	}()
	<-next.started

	type result struct {
		data []byte
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		data, err := f.GetAccountResource(context.Background(), "0xb", "bids")
		follower <- result{data, err}
	}()
	time.Sleep(100 * time.Millisecond) // 等待第二个调用加入同一次回源

	cancel()
	select {
	case err := <-leaderErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(next.release)
	select {
	case res := <-follower:
		require.NoError(t, res.err)
		assert.JSONEq(t, `{"bids":{}}`, string(res.data))
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not return")
	}
	assert.EqualValues(t, 1, next.calls.Load())
	assert.NoError(t, next.ctxErr)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "resource:0xb:0xb::book::OrderBookBids<A, B>", Key("0xb", "0xb::book::OrderBookBids<A, B>"))
}
