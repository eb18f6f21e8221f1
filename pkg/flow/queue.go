// 文件: pkg/flow/queue.go
// 单向链表队列（带空闲槽位列表）的解码
//
// 同一价格档位上的订单按 head -> next -> ... 排列，
// 被删除的槽位进入 free_indices 等待复用，读路径不关心它。

package flow

import (
	"fmt"
)

// Option 链上的 Option<T>，vec 里只有 0 或 1 个元素
type Option[V any] struct {
	Vec []V `json:"vec"`
}

// RawQueueNode 线上的队列节点
type RawQueueNode[V any] struct {
	Next  Sentinel  `json:"next"`
	Value Option[V] `json:"value"`
}

// RawQueue 线上的队列
type RawQueue[V any] struct {
	Head        Sentinel          `json:"head"`
	Tail        Sentinel          `json:"tail"`
	Nodes       []RawQueueNode[V] `json:"nodes"`
	FreeIndices []U64             `json:"free_indices"`
}

// WalkQueue 从 head 开始按链接顺序依次回调 fn，不分配结果切片
// 最多走 len(nodes) 步，超过说明链接成环
func WalkQueue[V any](raw RawQueue[V], fn func(V) error) error {
	n := len(raw.Nodes)

	cur, err := raw.Head.Decode()
	if err != nil {
		return fmt.Errorf("decode head: %w", err)
	}
	if cur.IsNone() {
		// 树里存在的档位至少有一个订单
		return fmt.Errorf("%w: head is empty", ErrMalformedQueue)
	}

	for steps := 0; ; steps++ {
		idx, _ := cur.Index()
		if idx >= n {
			return fmt.Errorf("%w: link %d out of range [0,%d)", ErrMalformedQueue, idx, n)
		}
		if steps >= n {
			return fmt.Errorf("%w: more than %d steps", ErrQueueCycleDetected, n)
		}
		node := &raw.Nodes[idx]

		switch len(node.Value.Vec) {
		case 0:
			return fmt.Errorf("%w: node %d", ErrEmptyQueueValue, idx)
		case 1:
		default:
			return fmt.Errorf("%w: node %d holds %d values", ErrMalformedQueue, idx, len(node.Value.Vec))
		}

		if err := fn(node.Value.Vec[0]); err != nil {
			return err
		}

		next, err := node.Next.Decode()
		if err != nil {
			return fmt.Errorf("decode node %d next: %w", idx, err)
		}
		if next.IsNone() {
			return nil
		}
		cur = next
	}
}

// DecodeQueue 按链接顺序返回全部元素
func DecodeQueue[V any](raw RawQueue[V]) ([]V, error) {
	values := make([]V, 0, len(raw.Nodes))
	err := WalkQueue(raw, func(v V) error {
		values = append(values, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}
