// 文件: pkg/book/reader.go
// 订单簿读取：拉取资源 -> 解码 -> 聚合

package book

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher 链上资源读取
// 返回资源的 data 字段（原始 JSON）
type Fetcher interface {
	GetAccountResource(ctx context.Context, owner, resourceType string) ([]byte, error)
}

// Reader 订单簿读取器
// 无状态，每次调用自己解码一份私有的树，可以并发使用
type Reader struct {
	fetcher Fetcher
	market  Market
	logger  *zap.Logger
}

// NewReader 创建读取器
func NewReader(fetcher Fetcher, market Market, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		fetcher: fetcher,
		market:  market,
		logger:  logger.With(zap.String("market", market.Key())),
	}
}

// Market 当前订单簿
func (r *Reader) Market() Market {
	return r.market
}

// Top 读取一侧盘口的前 n 档
func (r *Reader) Top(ctx context.Context, side Side, n int) ([]Level, error) {
	if n <= 0 {
		return []Level{}, nil
	}

	start := time.Now()
	resourceType := r.market.ResourceType(side)

	data, err := r.fetcher.GetAccountResource(ctx, r.market.Owner, resourceType)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", resourceType, err)
	}

	tree, err := DecodeResource(side, data)
	if err != nil {
		return nil, err
	}

	levels, err := TopLevels(tree, side, n)
	if err != nil {
		r.logger.Warn("decode book failed",
			zap.String("side", string(side)),
			zap.Error(err))
		return nil, err
	}

	r.logger.Debug("book top",
		zap.String("side", string(side)),
		zap.Int("requested", n),
		zap.Int("levels", len(levels)),
		zap.Int("price_levels", len(tree.Nodes)),
		zap.Duration("elapsed", time.Since(start)))

	return levels, nil
}

// Depth 并发读取两侧盘口
// 两侧快照相互独立，没有共享状态
func (r *Reader) Depth(ctx context.Context, n int) (*Depth, error) {
	var bids, asks []Level

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bids, err = r.Top(gctx, SideBids, n)
		return err
	})
	g.Go(func() error {
		var err error
		asks, err = r.Top(gctx, SideAsks, n)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewDepth(bids, asks), nil
}
