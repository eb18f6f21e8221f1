// 文件: pkg/flow/sentinel.go
// 哨兵编解码：链上用 u64 最大值表示"无链接"，这里转成 Link 类型

package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// U64MaxStr 保留的哨兵值 (u64::MAX)，任何合法下标都不可能等于它
const U64MaxStr = "18446744073709551615"

// =============================================================================
// Numeric - 线上的整数字段
// =============================================================================

// Numeric 保存线上整数字段的原始十进制文本
// 超过 2^53 的整数用字符串传输，这里同时兼容 JSON 字符串和 JSON 数字，
// 解析推迟到各自的解码器，失败时能返回带类型的错误。
type Numeric string

// UnmarshalJSON 兼容 "123" 和 123 两种写法
func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Numeric(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	*n = Numeric(data)
	return nil
}

// MarshalJSON 始终输出字符串，避免精度丢失
func (n Numeric) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

// Uint64 全精度解析
func (n Numeric) Uint64() (uint64, error) {
	return strconv.ParseUint(string(n), 10, 64)
}

// U64 在 JSON 解码时直接解析的 u64 字段（订单价格、数量等）
type U64 uint64

// UnmarshalJSON 兼容字符串和数字
func (u *U64) UnmarshalJSON(data []byte) error {
	var n Numeric
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	v, err := n.Uint64()
	if err != nil {
		return fmt.Errorf("invalid u64 %q: %w", string(n), err)
	}
	*u = U64(v)
	return nil
}

// MarshalJSON 输出十进制字符串
func (u U64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}

// =============================================================================
// Link - 下标 | 无
// =============================================================================

// Link 节点链接，要么指向一个下标，要么为空
// 零值就是 NoLink
type Link struct {
	index int
	valid bool
}

// NoLink 空链接
var NoLink = Link{}

// LinkTo 指向下标 idx 的链接
func LinkTo(idx int) Link {
	return Link{index: idx, valid: true}
}

// Index 返回下标，ok=false 表示空链接
func (l Link) Index() (int, bool) {
	return l.index, l.valid
}

// IsNone 是否为空链接
func (l Link) IsNone() bool {
	return !l.valid
}

// Is 是否指向 idx
func (l Link) Is(idx int) bool {
	return l.valid && l.index == idx
}

func (l Link) String() string {
	if !l.valid {
		return "none"
	}
	return strconv.Itoa(l.index)
}

// inBounds 空链接或 0 <= idx < n
func (l Link) inBounds(n int) bool {
	return !l.valid || l.index < n
}

// =============================================================================
// Sentinel - 线上的链接字段 { "value": "<u64>" }
// =============================================================================

// Sentinel 线上的链接字段
type Sentinel struct {
	Value Numeric `json:"value"`
}

// DecodeLink 哨兵值 -> NoLink，否则解析为非负下标
// 按数值比较哨兵，前导零等非规范写法同样视为空链接
func DecodeLink(raw string) (Link, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return NoLink, fmt.Errorf("%w: %q", ErrMalformedLink, raw)
	}
	if v == math.MaxUint64 {
		return NoLink, nil
	}
	if v > math.MaxInt {
		return NoLink, fmt.Errorf("%w: %q exceeds index range", ErrMalformedLink, raw)
	}
	return LinkTo(int(v)), nil
}

// Decode 解码链接字段
func (s Sentinel) Decode() (Link, error) {
	return DecodeLink(string(s.Value))
}

// EncodeLink 反向编码，NoLink 写回哨兵值
func EncodeLink(l Link) Sentinel {
	if idx, ok := l.Index(); ok {
		return Sentinel{Value: Numeric(strconv.Itoa(idx))}
	}
	return Sentinel{Value: U64MaxStr}
}
