// 文件: pkg/book/top.go
// 盘口前 N 档聚合

package book

import (
	"fmt"
	"math/bits"

	"laminar.com/pkg/flow"
)

// TopLevels 返回一侧盘口最优的 count 档
//
// 流程：解码树一次 -> 构造一个迭代器 -> 最多走 count 步，
// 每一步按链接顺序遍历该档位的订单队列，累加 remaining_size。
// 只解码访问到的档位，不为整本订单簿付费。
//
// count <= 0 时直接返回空，不读取快照。
func TopLevels(raw *OrdersTree, side Side, count int) ([]Level, error) {
	if count <= 0 {
		return []Level{}, nil
	}

	tree, err := flow.DecodeTree(*raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s tree: %w", side, err)
	}

	levels := make([]Level, 0, min(count, tree.Len()))
	it := flow.NewIterator(tree, side.Direction())

	for len(levels) < count && !it.Done() {
		price, queue, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("iterate %s: %w", side, err)
		}

		size, err := levelSize(queue)
		if err != nil {
			return nil, fmt.Errorf("%s level %d: %w", side, price, err)
		}

		levels = append(levels, Level{Price: price, Size: size})
	}

	return levels, nil
}

// levelSize 队列中所有订单剩余数量之和，溢出时报错
func levelSize(queue Queue) (uint64, error) {
	var sum uint64
	err := flow.WalkQueue(queue, func(o Order) error {
		var carry uint64
		sum, carry = bits.Add64(sum, uint64(o.RemainingSize), 0)
		if carry != 0 {
			return ErrSizeOverflow
		}
		return nil
	})
	return sum, err
}
