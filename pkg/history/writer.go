// 文件: pkg/history/writer.go
// 深度历史写入器
//
// 消费 Kafka 深度快照，批量写入 MySQL:
// - 按条数或时间间隔刷新
// - 批次写库成功后才确认对应消息，offset 不会越过未落库的快照
// - 重复消息靠唯一索引去重
// - 写入失败的批次保留到下一次刷新重试，缓冲满时 Add 阻塞直到写库恢复

package history

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"laminar.com/pkg/depth"
	"laminar.com/pkg/kafka"
)

// Source 消息来源，*kafka.Consumer 实现
type Source interface {
	Start()
	Stop() error
}

// WriterConfig 配置
type WriterConfig struct {
	BatchSize     int           // 缓冲达到该数量立即刷新
	FlushInterval time.Duration // 定时刷新
	MaxPending    int           // 缓冲上限，达到后 Add 阻塞
	WriteTimeout  time.Duration
}

// DefaultWriterConfig 默认配置
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 500 * time.Millisecond,
		MaxPending:    10000,
		WriteTimeout:  10 * time.Second,
	}
}

// WriterStats 统计
type WriterStats struct {
	Received int64
	Written  int64
	Errors   int64
	Batches  int64
	Blocked  int64 // Add 因缓冲满而等待的次数
}

// pending 缓冲中的快照及其确认回调
type pending struct {
	snap *depth.Snapshot
	ack  func()
}

// Writer 历史写入器
type Writer struct {
	repo   Repository
	cfg    WriterConfig
	logger *zap.Logger
	source Source

	bufferMu sync.Mutex
	drained  *sync.Cond // 写库成功或停止时唤醒阻塞的 Add
	buffer   []pending
	flushCh  chan struct{}

	received, written, errors, batches, blocked atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter 创建写入器
func NewWriter(repo Repository, cfg WriterConfig, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		repo:    repo,
		cfg:     cfg,
		logger:  logger.Named("history.writer"),
		buffer:  make([]pending, 0, cfg.BatchSize),
		flushCh: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.drained = sync.NewCond(&w.bufferMu)
	return w
}

// =============================================================================
// 消息处理
// =============================================================================

// Handle kafka.MessageHandler，快照落库后才调用 rec.Ack。
// 解析失败的消息不确认，后续消息确认时一并越过
func (w *Writer) Handle(rec kafka.Record) error {
	snap, err := depth.DecodeSnapshot(rec.Value)
	if err != nil {
		w.errors.Add(1)
		return fmt.Errorf("decode snapshot at offset %d: %w", rec.Offset, err)
	}
	w.add(snap, rec.Ack)
	return nil
}

// Add 加入缓冲，缓冲满时阻塞直到写库成功或写入器停止
func (w *Writer) Add(snap *depth.Snapshot) {
	w.add(snap, nil)
}

func (w *Writer) add(snap *depth.Snapshot, ack func()) {
	w.received.Add(1)

	w.bufferMu.Lock()
	if w.full() {
		w.blocked.Add(1)
		w.signalFlush()
		for w.full() && w.ctx.Err() == nil {
			w.drained.Wait()
		}
	}
	w.buffer = append(w.buffer, pending{snap: snap, ack: ack})
	shouldFlush := len(w.buffer) >= w.cfg.BatchSize
	w.bufferMu.Unlock()

	if shouldFlush {
		w.signalFlush()
	}
}

// full 调用方持有 bufferMu
func (w *Writer) full() bool {
	return w.cfg.MaxPending > 0 && len(w.buffer) >= w.cfg.MaxPending
}

func (w *Writer) signalFlush() {
	select {
	case w.flushCh <- struct{}{}:
	default:
	}
}

// =============================================================================
// 批量写入
// =============================================================================

// Flush 立即写入缓冲，成功后按接收顺序确认
func (w *Writer) Flush(ctx context.Context) error {
	w.bufferMu.Lock()
	batch := w.buffer
	w.buffer = make([]pending, 0, w.cfg.BatchSize)
	w.bufferMu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	snaps := make([]*depth.Snapshot, len(batch))
	for i, p := range batch {
		snaps[i] = p.snap
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.WriteTimeout)
	defer cancel()

	if err := w.repo.SaveSnapshots(ctx, snaps); err != nil {
		w.errors.Add(1)
		w.requeue(batch)
		return fmt.Errorf("save %d snapshots: %w", len(snaps), err)
	}

	for _, p := range batch {
		if p.ack != nil {
			p.ack()
		}
	}
	w.written.Add(int64(len(snaps)))
	w.batches.Add(1)

	w.bufferMu.Lock()
	w.drained.Broadcast()
	w.bufferMu.Unlock()
	return nil
}

// requeue 失败的批次放回缓冲头部，保持确认顺序
func (w *Writer) requeue(batch []pending) {
	w.bufferMu.Lock()
	defer w.bufferMu.Unlock()
	w.buffer = append(batch, w.buffer...)
}

func (w *Writer) flush() {
	if err := w.Flush(context.Background()); err != nil {
		w.logger.Error("flush failed", zap.Error(err))
	}
}

// =============================================================================
// 生命周期
// =============================================================================

// Start 启动消费和定时刷新
func (w *Writer) Start(source Source) {
	w.source = source
	source.Start()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.cfg.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.flush()
			case <-w.flushCh:
				w.flush()
			}
		}
	}()
}

// Stop 唤醒阻塞的 Add，趁消费会话还在写一次缓冲，停消费后再写剩余部分
func (w *Writer) Stop() error {
	w.cancel()
	w.bufferMu.Lock()
	w.drained.Broadcast()
	w.bufferMu.Unlock()
	w.wg.Wait()
	w.flush()

	var err error
	if w.source != nil {
		err = w.source.Stop()
	}
	w.flush()
	return err
}

// Stats 获取统计
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Received: w.received.Load(),
		Written:  w.written.Load(),
		Errors:   w.errors.Load(),
		Batches:  w.batches.Load(),
		Blocked:  w.blocked.Load(),
	}
}

// Pending 缓冲中未写入的快照数
func (w *Writer) Pending() int {
	w.bufferMu.Lock()
	defer w.bufferMu.Unlock()
	return len(w.buffer)
}
