// 文件: pkg/depth/poller.go
// 深度轮询器
//
// 按固定间隔读取两侧盘口，生成快照后：
// 1. 交给 Broadcaster 扇出（非阻塞，慢订阅者丢包）
// 2. 依次写入每个 Sink（单个 Sink 失败不影响其他）
//
// 读取失败只记日志和计数，下一个周期重试。

package depth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"laminar.com/pkg/book"
)

// DepthReader 两侧盘口读取，*book.Reader 实现
type DepthReader interface {
	Market() book.Market
	Depth(ctx context.Context, n int) (*book.Depth, error)
}

// PollerConfig 轮询配置
type PollerConfig struct {
	Levels        int           // 每侧档位数
	Interval      time.Duration // 轮询间隔
	Timeout       time.Duration // 单次读取超时，0 表示使用 Interval
	SkipUnchanged bool          // 盘口未变化时不发布
}

// DefaultPollerConfig 默认配置
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Levels:        10,
		Interval:      time.Second,
		SkipUnchanged: true,
	}
}

// PollerStats 统计
type PollerStats struct {
	Polls     int64
	Errors    int64
	Published int64
	Skipped   int64
	SinkFails int64
}

// Poller 深度轮询器
type Poller struct {
	reader      DepthReader
	ids         *IDGenerator
	broadcaster *Broadcaster[*Snapshot]
	sinks       []Sink
	cfg         PollerConfig
	logger      *zap.Logger

	mu   sync.RWMutex
	last *Snapshot

	polls, errors, published, skipped, sinkFails atomic.Int64

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewPoller 创建轮询器
func NewPoller(reader DepthReader, ids *IDGenerator, cfg PollerConfig, logger *zap.Logger, sinks ...Sink) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Poller{
		reader:      reader,
		ids:         ids,
		broadcaster: NewBroadcaster[*Snapshot](),
		sinks:       sinks,
		cfg:         cfg,
		logger:      logger.Named("poller").With(zap.String("market", reader.Market().Key())),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Broadcaster 订阅入口
func (p *Poller) Broadcaster() *Broadcaster[*Snapshot] {
	return p.broadcaster
}

// Latest 最近一次成功读取的快照，尚未读取时为 nil
func (p *Poller) Latest() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Stats 统计
func (p *Poller) Stats() PollerStats {
	return PollerStats{
		Polls:     p.polls.Load(),
		Errors:    p.errors.Load(),
		Published: p.published.Load(),
		Skipped:   p.skipped.Load(),
		SinkFails: p.sinkFails.Load(),
	}
}

// Start 后台轮询，立即执行第一次
// ctx 取消或 Stop 时退出，退出后关闭 Broadcaster
func (p *Poller) Start(ctx context.Context) {
	go p.loop(ctx)
}

// Stop 停止并等待循环退出
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	defer p.broadcaster.Close()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("poll failed", zap.Error(err))
	}
}

// PollOnce 读取一次并发布
// 返回本次快照；盘口未变化被跳过时也返回快照
func (p *Poller) PollOnce(ctx context.Context) (*Snapshot, error) {
	p.polls.Add(1)

	rctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	d, err := p.reader.Depth(rctx, p.cfg.Levels)
	if err != nil {
		p.errors.Add(1)
		return nil, err
	}

	snap := NewSnapshot(p.ids.Next(), p.reader.Market(), d, time.Now())

	p.mu.Lock()
	prev := p.last
	p.last = snap
	p.mu.Unlock()

	if p.cfg.SkipUnchanged && snap.SameBook(prev) {
		p.skipped.Add(1)
		return snap, nil
	}

	p.broadcaster.Broadcast(snap)
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			p.sinkFails.Add(1)
			p.logger.Warn("sink publish failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
	p.published.Add(1)

	p.logger.Debug("depth published",
		zap.Int64("id", snap.ID),
		zap.Int("bids", len(snap.Bids)),
		zap.Int("asks", len(snap.Asks)),
		zap.Uint64("best_bid", snap.BestBid),
		zap.Uint64("best_ask", snap.BestAsk))

	return snap, nil
}
