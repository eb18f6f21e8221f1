// 文件: pkg/book/resource.go
// 订单簿在链上以两个资源存放：OrderBookBids / OrderBookAsks

package book

import (
	"encoding/json"
	"fmt"
)

// Market 一本订单簿：发布者地址 + 基础币 + 计价币
type Market struct {
	Owner    string `json:"owner"`
	BaseTag  string `json:"base_tag"`  // 如 0xb::coin::FakeBaseCoin
	QuoteTag string `json:"quote_tag"` // 如 0xb::coin::FakeQuoteCoin
}

// Key 订单簿唯一标识，用作消息 key / 存储维度
func (m Market) Key() string {
	return m.Owner + "/" + m.BaseTag + "/" + m.QuoteTag
}

// ResourceType 一侧盘口的资源类型
//
//	<owner>::book::OrderBookBids<base, quote>
//	<owner>::book::OrderBookAsks<base, quote>
func (m Market) ResourceType(side Side) string {
	name := "OrderBookAsks"
	if side == SideBids {
		name = "OrderBookBids"
	}
	return fmt.Sprintf("%s::book::%s<%s, %s>", m.Owner, name, m.BaseTag, m.QuoteTag)
}

// BidsResource OrderBookBids 资源的 data 部分
type BidsResource struct {
	Bids OrdersTree `json:"bids"`
}

// AsksResource OrderBookAsks 资源的 data 部分
type AsksResource struct {
	Asks OrdersTree `json:"asks"`
}

// DecodeResource 从资源 data 中取出对应一侧的树
// 只做 JSON 形状的解析，树和队列的校验在 TopLevels 里完成
func DecodeResource(side Side, data []byte) (*OrdersTree, error) {
	switch side {
	case SideBids:
		var r BidsResource
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal bids resource: %w", err)
		}
		return &r.Bids, nil
	case SideAsks:
		var r AsksResource
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal asks resource: %w", err)
		}
		return &r.Asks, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSide, string(side))
}
