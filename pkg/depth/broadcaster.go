// 文件: pkg/depth/broadcaster.go
// 快照扇出：一个生产者，多个订阅者
//
//	      Poller
//	        |
//	   [Broadcaster]
//	    /    |    \
//	 sink   CLI   ...
//
// 订阅者处理慢时丢弃新快照，不阻塞其他订阅者（深度只关心最新值）

package depth

import (
	"sync"
	"sync/atomic"
)

// Broadcaster 扇出器
type Broadcaster[T any] struct {
	mu          sync.RWMutex // Broadcast 读锁，Subscribe/Unsubscribe 写锁
	subscribers []chan T
	closed      bool

	dropped atomic.Int64
}

// NewBroadcaster 创建扇出器
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{}
}

// Subscribe 订阅，buffer 为通道缓冲
// 扇出器已关闭时返回一个已关闭的通道
func (b *Broadcaster[T]) Subscribe(buffer int) <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (b *Broadcaster[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, ch := range b.subscribers {
		if ch == sub {
			close(ch)
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Broadcast 非阻塞发送给所有订阅者，返回成功送达的数量
func (b *Broadcaster[T]) Broadcast(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- v:
			delivered++
		default:
			b.dropped.Add(1)
		}
	}
	return delivered
}

// Subscribers 当前订阅数
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped 累计丢弃数
func (b *Broadcaster[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Close 关闭所有订阅通道，可重复调用
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
