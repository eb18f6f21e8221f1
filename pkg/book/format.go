// 文件: pkg/book/format.go
// 链上价格/数量是整数，展示时按精度换算成小数

package book

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Formatter 展示精度
// 例：PriceDecimals=4 时链上价格 12345 显示为 1.2345
type Formatter struct {
	PriceDecimals int32
	SizeDecimals  int32
}

// DisplayLevel 展示用档位
type DisplayLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Level 转换单个档位
func (f Formatter) Level(l Level) DisplayLevel {
	return DisplayLevel{
		Price: scale(l.Price, f.PriceDecimals).StringFixed(f.PriceDecimals),
		Size:  scale(l.Size, f.SizeDecimals).StringFixed(f.SizeDecimals),
	}
}

// Levels 批量转换
func (f Formatter) Levels(levels []Level) []DisplayLevel {
	out := make([]DisplayLevel, len(levels))
	for i, l := range levels {
		out[i] = f.Level(l)
	}
	return out
}

// scale u64 可能超过 int64，经 big.Int 构造
func scale(v uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -decimals)
}
