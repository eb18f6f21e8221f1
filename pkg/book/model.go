// 文件: pkg/book/model.go
// 链上订单簿的数据模型

package book

import (
	"fmt"

	"laminar.com/pkg/flow"
)

// =============================================================================
// 订单方向（链上 u8）
// =============================================================================

// OrderSide 订单方向，链上用 u8 存储
type OrderSide uint8

const (
	OrderSideBuy  OrderSide = 0
	OrderSideSell OrderSide = 1
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// =============================================================================
// 订单
// =============================================================================

// OrderID 订单 ID：下单账户 + 账户内的创建序号
type OrderID struct {
	Addr        string   `json:"addr"`
	CreationNum flow.U64 `json:"creation_num"`
}

// Order 挂单记录
// 生命周期（成交、撤单）全部发生在链上，这里只读快照
type Order struct {
	ID            OrderID   `json:"id"`
	Side          OrderSide `json:"side"`
	Price         flow.U64  `json:"price"`
	Size          flow.U64  `json:"size"`
	RemainingSize flow.U64  `json:"remaining_size"`
	PostOnly      bool      `json:"post_only"`
}

func (o Order) String() string {
	return fmt.Sprintf("Order{%s#%d, %s %d@%d, Remaining:%d}",
		o.ID.Addr, o.ID.CreationNum, o.Side, o.Size, o.Price, o.RemainingSize)
}

// Queue 一个价格档位上的订单队列
type Queue = flow.RawQueue[Order]

// OrdersTree 一侧盘口：price -> Queue
type OrdersTree = flow.RawTree[Queue]

// =============================================================================
// 盘口方向
// =============================================================================

// Side 盘口方向
type Side string

const (
	SideBids Side = "bids" // 买盘，最高价最优
	SideAsks Side = "asks" // 卖盘，最低价最优
)

// ParseSide 解析命令行 / 配置里的方向
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBids, SideAsks:
		return Side(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSide, s)
}

// Direction 最优价优先的遍历方向
func (s Side) Direction() flow.Direction {
	if s == SideBids {
		return flow.Descending
	}
	return flow.Ascending
}

// =============================================================================
// 档位
// =============================================================================

// Level 一个价格档位的聚合深度
type Level struct {
	Price uint64 `json:"price"`
	Size  uint64 `json:"size"` // 该价格上所有订单 remaining_size 之和
}

// Depth 双边深度
// 没有挂单的一侧最优价为 0，与撮合引擎快照的约定一致
type Depth struct {
	Bids    []Level `json:"bids"`
	Asks    []Level `json:"asks"`
	BestBid uint64  `json:"best_bid"`
	BestAsk uint64  `json:"best_ask"`
	Spread  uint64  `json:"spread"`
}

// NewDepth 根据两侧档位计算最优价和价差
func NewDepth(bids, asks []Level) *Depth {
	d := &Depth{Bids: bids, Asks: asks}
	if len(bids) > 0 {
		d.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		d.BestAsk = asks[0].Price
	}
	if d.BestBid > 0 && d.BestAsk > d.BestBid {
		d.Spread = d.BestAsk - d.BestBid
	}
	return d
}
