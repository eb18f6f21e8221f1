package book

import "errors"

var (
	// ErrSizeOverflow 档位数量求和超出 u64
	ErrSizeOverflow = errors.New("level size overflows u64")

	// ErrUnknownSide 未知的盘口方向
	ErrUnknownSide = errors.New("unknown book side")
)
