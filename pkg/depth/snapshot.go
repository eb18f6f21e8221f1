// 文件: pkg/depth/snapshot.go

package depth

import (
	"encoding/json"
	"time"

	"laminar.com/pkg/book"
)

// Snapshot 某一时刻的盘口深度
type Snapshot struct {
	ID      int64        `json:"id"`
	Book    string       `json:"book"` // book.Market.Key()
	Bids    []book.Level `json:"bids"`
	Asks    []book.Level `json:"asks"`
	BestBid uint64       `json:"best_bid"`
	BestAsk uint64       `json:"best_ask"`
	Spread  uint64       `json:"spread"`
	Ts      time.Time    `json:"ts"`
}

// NewSnapshot 由两侧深度构造快照
func NewSnapshot(id int64, market book.Market, d *book.Depth, ts time.Time) *Snapshot {
	return &Snapshot{
		ID:      id,
		Book:    market.Key(),
		Bids:    d.Bids,
		Asks:    d.Asks,
		BestBid: d.BestBid,
		BestAsk: d.BestAsk,
		Spread:  d.Spread,
		Ts:      ts,
	}
}

// Levels 按方向取一侧
func (s *Snapshot) Levels(side book.Side) []book.Level {
	if side == book.SideBids {
		return s.Bids
	}
	return s.Asks
}

// SameBook 两次快照的盘口是否完全一致（不比较 ID 和时间）
func (s *Snapshot) SameBook(o *Snapshot) bool {
	if o == nil || s.Book != o.Book {
		return false
	}
	return levelsEqual(s.Bids, o.Bids) && levelsEqual(s.Asks, o.Asks)
}

func levelsEqual(a, b []book.Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DecodeSnapshot 反序列化
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
