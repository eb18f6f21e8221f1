// 文件: pkg/history/repository.go
package history

import (
	"context"
	"errors"
	"time"

	"laminar.com/pkg/book"
	"laminar.com/pkg/depth"
)

var ErrNoHistory = errors.New("history: no snapshot recorded")

type Repository interface {
	// 写入，同一快照重复写入是幂等的
	SaveSnapshots(ctx context.Context, snaps []*depth.Snapshot) error

	// 某本簿一侧最近一次快照的前 n 档
	Latest(ctx context.Context, bookKey string, side book.Side, n int) (*SideSnapshot, error)

	// 删除 before 之前的数据，返回删除行数
	Prune(ctx context.Context, before time.Time) (int64, error)
}
