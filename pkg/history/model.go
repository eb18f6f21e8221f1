// 文件: pkg/history/model.go
// 深度历史：每个快照按档位展开成行

package history

import (
	"time"

	"laminar.com/pkg/book"
	"laminar.com/pkg/depth"
)

// LevelRecord 一个快照中一侧的一个档位
type LevelRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SnapshotID int64  `gorm:"column:snapshot_id;uniqueIndex:uk_snapshot_level"`
	Book       string `gorm:"column:book;type:varchar(255);index:idx_book_side_ts"`
	Side       string `gorm:"column:side;type:varchar(4);uniqueIndex:uk_snapshot_level;index:idx_book_side_ts"`
	LevelNo    int    `gorm:"column:level_no;uniqueIndex:uk_snapshot_level"` // 0 为最优价
	Price      uint64 `gorm:"column:price"`
	Size       uint64 `gorm:"column:size"`
	Ts         int64  `gorm:"column:ts;index:idx_book_side_ts"` // 毫秒
}

func (LevelRecord) TableName() string {
	return "depth_levels"
}

// Records 展开快照
// 空的一侧不产生行，Latest 查到的是该侧最近一次有挂单的快照
func Records(s *depth.Snapshot) []*LevelRecord {
	out := make([]*LevelRecord, 0, len(s.Bids)+len(s.Asks))
	for _, side := range []book.Side{book.SideBids, book.SideAsks} {
		for i, l := range s.Levels(side) {
			out = append(out, &LevelRecord{
				SnapshotID: s.ID,
				Book:       s.Book,
				Side:       string(side),
				LevelNo:    i,
				Price:      l.Price,
				Size:       l.Size,
				Ts:         s.Ts.UnixMilli(),
			})
		}
	}
	return out
}

// SideSnapshot 一侧的历史深度
type SideSnapshot struct {
	SnapshotID int64
	Levels     []book.Level
	Ts         time.Time
}
