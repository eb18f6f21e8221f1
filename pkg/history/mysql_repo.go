// 文件: pkg/history/mysql_repo.go
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"laminar.com/pkg/book"
	"laminar.com/pkg/depth"
)

const insertBatchSize = 500

// OpenMySQL 连接并迁移表结构
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.AutoMigrate(&LevelRecord{}); err != nil {
		return nil, fmt.Errorf("migrate depth_levels: %w", err)
	}
	return db, nil
}

type MySQLRepository struct {
	db *gorm.DB
}

func NewMySQLRepository(db *gorm.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) SaveSnapshots(ctx context.Context, snaps []*depth.Snapshot) error {
	var rows []*LevelRecord
	for _, s := range snaps {
		rows = append(rows, Records(s)...)
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, insertBatchSize).Error
}

func (r *MySQLRepository) Latest(ctx context.Context, bookKey string, side book.Side, n int) (*SideSnapshot, error) {
	var head LevelRecord
	err := r.db.WithContext(ctx).
		Where("book = ? AND side = ?", bookKey, string(side)).
		Order("ts DESC").Order("snapshot_id DESC").
		First(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, err
	}

	out := &SideSnapshot{
		SnapshotID: head.SnapshotID,
		Levels:     []book.Level{},
		Ts:         time.UnixMilli(head.Ts),
	}
	if n <= 0 {
		return out, nil
	}

	var rows []*LevelRecord
	err = r.db.WithContext(ctx).
		Where("snapshot_id = ? AND side = ?", head.SnapshotID, string(side)).
		Order("level_no ASC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out.Levels = append(out.Levels, book.Level{Price: row.Price, Size: row.Size})
	}
	return out, nil
}

func (r *MySQLRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("ts < ?", before.UnixMilli()).
		Delete(&LevelRecord{})
	return res.RowsAffected, res.Error
}
