// 文件: pkg/flow/tree.go
// 数组化（arena）的伸展树快照解码
//
// 链上的节点存放在一个扁平数组里，left/right/root/min/max 都是下标。
// 数组位置不代表排序，排序只能通过遍历得到。

package flow

import (
	"fmt"
)

// =============================================================================
// 线上格式
// =============================================================================

// RawNode 线上的树节点
type RawNode[V any] struct {
	Key   Numeric  `json:"key"`
	Left  Sentinel `json:"left"`
	Right Sentinel `json:"right"`
	Value V        `json:"value"`
}

// RawTree 线上的树
// RemovedNodes / SingleSplay 只对写路径有意义，读路径不使用
type RawTree[V any] struct {
	Root         Sentinel     `json:"root"`
	Nodes        []RawNode[V] `json:"nodes"`
	Min          Sentinel     `json:"min"`
	Max          Sentinel     `json:"max"`
	RemovedNodes []U64        `json:"removed_nodes"`
	SingleSplay  bool         `json:"single_splay"`
}

// =============================================================================
// 解码后的结构
// =============================================================================

// Node 解码后的节点，Value 原样透传
type Node[V any] struct {
	Key   uint64
	Left  Link
	Right Link
	Value V
}

// Tree 解码后的树
// 不变量：Root 为空时 Min/Max 也为空；所有链接都在 Nodes 范围内
type Tree[V any] struct {
	Root  Link
	Nodes []Node[V]
	Min   Link
	Max   Link
}

// IsEmpty 树是否为空
func (t *Tree[V]) IsEmpty() bool {
	return t.Root.IsNone()
}

// Len 节点数组长度
func (t *Tree[V]) Len() int {
	return len(t.Nodes)
}

// node 按下标取节点，调用前已经校验过范围
func (t *Tree[V]) node(idx int) *Node[V] {
	return &t.Nodes[idx]
}

// DecodeTree 解码整棵树
// 只校验链接范围和 root/min/max 的一致性，不校验 BST 有序性
func DecodeTree[V any](raw RawTree[V]) (*Tree[V], error) {
	n := len(raw.Nodes)
	tree := &Tree[V]{Nodes: make([]Node[V], n)}

	for i := range raw.Nodes {
		rn := &raw.Nodes[i]

		key, err := rn.Key.Uint64()
		if err != nil {
			return nil, fmt.Errorf("%w: node %d key %q", ErrMalformedTree, i, string(rn.Key))
		}
		left, err := decodeTreeLink(rn.Left, n, "left", i)
		if err != nil {
			return nil, err
		}
		right, err := decodeTreeLink(rn.Right, n, "right", i)
		if err != nil {
			return nil, err
		}

		tree.Nodes[i] = Node[V]{Key: key, Left: left, Right: right, Value: rn.Value}
	}

	var err error
	if tree.Root, err = decodeTreeLink(raw.Root, n, "root", -1); err != nil {
		return nil, err
	}
	if tree.Min, err = decodeTreeLink(raw.Min, n, "min", -1); err != nil {
		return nil, err
	}
	if tree.Max, err = decodeTreeLink(raw.Max, n, "max", -1); err != nil {
		return nil, err
	}

	// root 为空 <=> min、max 都为空
	if tree.Root.IsNone() != tree.Min.IsNone() || tree.Root.IsNone() != tree.Max.IsNone() {
		return nil, fmt.Errorf("%w: root=%s min=%s max=%s",
			ErrMalformedTree, tree.Root, tree.Min, tree.Max)
	}

	return tree, nil
}

// decodeTreeLink 解码并检查范围，node<0 表示树头上的字段
func decodeTreeLink(s Sentinel, n int, field string, node int) (Link, error) {
	l, err := s.Decode()
	if err != nil {
		if node < 0 {
			return NoLink, fmt.Errorf("decode %s: %w", field, err)
		}
		return NoLink, fmt.Errorf("decode node %d %s: %w", node, field, err)
	}
	if !l.inBounds(n) {
		if node < 0 {
			return NoLink, fmt.Errorf("%w: %s=%s out of range [0,%d)", ErrMalformedTree, field, l, n)
		}
		return NoLink, fmt.Errorf("%w: node %d %s=%s out of range [0,%d)", ErrMalformedTree, node, field, l, n)
	}
	return l, nil
}
