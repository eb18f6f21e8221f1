// Package flowtest 构造链上格式的树和队列快照，供测试使用
package flowtest

import (
	"fmt"
	"strconv"

	"laminar.com/pkg/flow"
)

// Entry 树的一个键值对
type Entry[V any] struct {
	Key   uint64
	Value V
}

// Tree 按插入顺序构造一棵普通 BST（不旋转），节点下标就是插入顺序
// 重复的 key 会 panic
func Tree[V any](entries ...Entry[V]) flow.RawTree[V] {
	tree := flow.RawTree[V]{
		Root: flow.EncodeLink(flow.NoLink),
		Min:  flow.EncodeLink(flow.NoLink),
		Max:  flow.EncodeLink(flow.NoLink),
	}
	if len(entries) == 0 {
		return tree
	}

	type link struct {
		left, right int
	}
	links := make([]link, len(entries))
	minIdx, maxIdx := 0, 0

	for i, e := range entries {
		links[i] = link{-1, -1}
		if e.Key < entries[minIdx].Key {
			minIdx = i
		}
		if e.Key > entries[maxIdx].Key {
			maxIdx = i
		}
		if i == 0 {
			continue
		}
		for cur, placed := 0, false; !placed; {
			switch {
			case e.Key < entries[cur].Key:
				if links[cur].left < 0 {
					links[cur].left, placed = i, true
				} else {
					cur = links[cur].left
				}
			case e.Key > entries[cur].Key:
				if links[cur].right < 0 {
					links[cur].right, placed = i, true
				} else {
					cur = links[cur].right
				}
			default:
				panic(fmt.Sprintf("flowtest: duplicate key %d", e.Key))
			}
		}
	}

	tree.Nodes = make([]flow.RawNode[V], len(entries))
	for i, e := range entries {
		tree.Nodes[i] = flow.RawNode[V]{
			Key:   flow.Numeric(strconv.FormatUint(e.Key, 10)),
			Left:  sentinel(links[i].left),
			Right: sentinel(links[i].right),
			Value: e.Value,
		}
	}
	tree.Root = sentinel(0)
	tree.Min = sentinel(minIdx)
	tree.Max = sentinel(maxIdx)
	return tree
}

// Queue 构造队列：元素倒序放在数组里，末尾留一个空闲槽位
// 这样遍历顺序和数组顺序不同，也覆盖 free_indices
func Queue[V any](values ...V) flow.RawQueue[V] {
	n := len(values)
	q := flow.RawQueue[V]{
		Head:        flow.EncodeLink(flow.NoLink),
		Tail:        flow.EncodeLink(flow.NoLink),
		Nodes:       make([]flow.RawQueueNode[V], n+1),
		FreeIndices: []flow.U64{flow.U64(n)},
	}
	q.Nodes[n] = flow.RawQueueNode[V]{Next: flow.EncodeLink(flow.NoLink)}

	for i, v := range values {
		slot := n - 1 - i
		next := -1
		if i+1 < n {
			next = slot - 1
		}
		q.Nodes[slot] = flow.RawQueueNode[V]{
			Next:  sentinel(next),
			Value: flow.Option[V]{Vec: []V{v}},
		}
	}
	if n > 0 {
		q.Head = sentinel(n - 1)
		q.Tail = sentinel(0)
	}
	return q
}

// Sentinel idx<0 编码为哨兵值
func Sentinel(idx int) flow.Sentinel {
	return sentinel(idx)
}

func sentinel(idx int) flow.Sentinel {
	if idx < 0 {
		return flow.EncodeLink(flow.NoLink)
	}
	return flow.EncodeLink(flow.LinkTo(idx))
}
