// 文件: pkg/flow/iterator.go
// 有界双向迭代器：在没有父指针的数组树上做非递归的中序 / 逆中序遍历

package flow

import (
	"fmt"

	"github.com/emirpasic/gods/v2/stacks/arraystack"
)

// Direction 遍历方向
type Direction int8

const (
	Ascending  Direction = iota // 中序，最小 key 先出（卖盘）
	Descending                  // 逆中序，最大 key 先出（买盘）
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// =============================================================================
// Iterator
// =============================================================================
//
// 栈里保存的是 root 到当前节点的路径（下标）。
// 快照里只有子指针，"我是父节点的左孩子还是右孩子" 通过比较
// 刚弹出的下标和新栈顶的 left/right 得到，不比较 key。
//
// 升序为例：
//
//	        5
//	      /   \
//	     3     8
//
//	Next#1: 栈空，沿 left 压栈 [5 3]，返回 3
//	Next#2: 3 没有 right，弹出 3；栈顶 5 的 left==3，返回 5
//	Next#3: 5 有 right，沿 8 的 left 压栈 [5 8]，返回 8
//	        8 是 max，done=true（8 仍然返回）

// Iterator 树迭代器
// 非并发安全，每次调用自己构造
type Iterator[V any] struct {
	tree  *Tree[V]
	stack *arraystack.Stack[int]
	dir   Direction
	done  bool
}

// NewIterator 创建迭代器，空树直接是 done 状态
func NewIterator[V any](tree *Tree[V], dir Direction) *Iterator[V] {
	return &Iterator[V]{
		tree:  tree,
		stack: arraystack.New[int](),
		dir:   dir,
		done:  tree.IsEmpty(),
	}
}

// Done 是否已经产出过当前方向的最后一个节点
func (it *Iterator[V]) Done() bool {
	return it.done
}

// Next 返回下一个 (key, value)
// 产出 max（升序）或 min（降序）之后 Done() 变为 true
func (it *Iterator[V]) Next() (uint64, V, error) {
	var zero V
	if it.done {
		return 0, zero, ErrIteratorExhausted
	}

	idx, err := it.nextIndex()
	if err != nil {
		it.done = true
		return 0, zero, err
	}

	// 比较下标而不是 key
	if it.last().Is(idx) {
		it.done = true
	}

	node := it.tree.node(idx)
	return node.Key, node.Value, nil
}

// near 先访问的子树：升序是 left，降序是 right
func (it *Iterator[V]) near(n *Node[V]) Link {
	if it.dir == Descending {
		return n.Right
	}
	return n.Left
}

// far 后访问的子树
func (it *Iterator[V]) far(n *Node[V]) Link {
	if it.dir == Descending {
		return n.Left
	}
	return n.Right
}

// last 当前方向的终点
func (it *Iterator[V]) last() Link {
	if it.dir == Descending {
		return it.tree.Min
	}
	return it.tree.Max
}

// descend 从 from 开始沿 near 一路压栈
// 路径长度不可能超过节点数，超过说明链接成环
func (it *Iterator[V]) descend(from Link) error {
	for l := from; !l.IsNone(); {
		if it.stack.Size() >= it.tree.Len() {
			return fmt.Errorf("%w: path longer than %d nodes", ErrMalformedTree, it.tree.Len())
		}
		idx, _ := l.Index()
		it.stack.Push(idx)
		l = it.near(it.tree.node(idx))
	}
	return nil
}

func (it *Iterator[V]) top() int {
	idx, _ := it.stack.Peek()
	return idx
}

func (it *Iterator[V]) nextIndex() (int, error) {
	// 第一次调用
	if it.stack.Empty() {
		if err := it.descend(it.tree.Root); err != nil {
			return 0, err
		}
		return it.top(), nil
	}

	// 当前节点还有未访问的 far 子树：进入它的最 near 端
	cur := it.top()
	if far := it.far(it.tree.node(cur)); !far.IsNone() {
		if err := it.descend(far); err != nil {
			return 0, err
		}
		return it.top(), nil
	}

	// 向上回溯：从 far 侧回来的祖先已经访问过，继续弹；
	// 第一个从 near 侧回来的祖先就是下一个
	cur, _ = it.stack.Pop()
	for {
		parent, ok := it.stack.Peek()
		if !ok {
			return 0, fmt.Errorf("%w: reached root before %s", ErrMalformedTree, it.last())
		}
		p := it.tree.node(parent)
		switch {
		case it.near(p).Is(cur):
			return parent, nil
		case it.far(p).Is(cur):
			cur, _ = it.stack.Pop()
		default:
			return 0, fmt.Errorf("%w: node %d is not a child of %d", ErrMalformedTree, cur, parent)
		}
	}
}
