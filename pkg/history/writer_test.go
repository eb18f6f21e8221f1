package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"laminar.com/pkg/book"
	"laminar.com/pkg/depth"
	"laminar.com/pkg/kafka"
)

// =============================================================================
// 内存仓储
// =============================================================================

type memRepo struct {
	mu    sync.Mutex
	rows  map[[3]any]*LevelRecord // (snapshot, side, level)
	saves int
	err   error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[[3]any]*LevelRecord)}
}

func (r *memRepo) SaveSnapshots(_ context.Context, snaps []*depth.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saves++
	for _, s := range snaps {
		for _, row := range Records(s) {
			r.rows[[3]any{row.SnapshotID, row.Side, row.LevelNo}] = row
		}
	}
	return nil
}

func (r *memRepo) Latest(context.Context, string, book.Side, int) (*SideSnapshot, error) {
	return nil, ErrNoHistory
}

func (r *memRepo) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *memRepo) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type nopSource struct{ started, stopped bool }

func (s *nopSource) Start()      { s.started = true }
func (s *nopSource) Stop() error { s.stopped = true; return nil }

func snapshot(id int64, bids, asks int) *depth.Snapshot {
	s := &depth.Snapshot{ID: id, Book: "0xb/A/B", Ts: time.UnixMilli(1700000000000 + id)}
	for i := 0; i < bids; i++ {
		s.Bids = append(s.Bids, book.Level{Price: uint64(100 - i), Size: 1})
	}
	for i := 0; i < asks; i++ {
		s.Asks = append(s.Asks, book.Level{Price: uint64(101 + i), Size: 1})
	}
	return s
}

func record(t *testing.T, s *depth.Snapshot) kafka.Record {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return kafka.Record{Topic: "book.depth", Key: []byte(s.Book), Value: data}
}

// =============================================================================
// 用例
// =============================================================================

func TestRecords(t *testing.T) {
	rows := Records(snapshot(9, 2, 1))
	require.Len(t, rows, 3)

	assert.Equal(t, "bids", rows[0].Side)
	assert.Equal(t, 0, rows[0].LevelNo)
	assert.Equal(t, uint64(100), rows[0].Price)
	assert.Equal(t, 1, rows[1].LevelNo)
	assert.Equal(t, "asks", rows[2].Side)
	assert.Equal(t, int64(1700000000009), rows[2].Ts)

	assert.Empty(t, Records(snapshot(10, 0, 0)))
}

func TestWriter_HandleAndFlush(t *testing.T) {
	repo := newMemRepo()
	w := NewWriter(repo, DefaultWriterConfig(), zap.NewNop())

	require.NoError(t, w.Handle(record(t, snapshot(1, 2, 2))))
	require.NoError(t, w.Handle(record(t, snapshot(2, 1, 0))))
	require.Error(t, w.Handle(kafka.Record{Value: []byte("{")}))

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, 5, repo.count())

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.Received)
	assert.Equal(t, int64(2), stats.Written)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(1), stats.Batches)
}

func TestWriter_DuplicateDelivery(t *testing.T) {
	repo := newMemRepo()
	w := NewWriter(repo, DefaultWriterConfig(), zap.NewNop())

	s := snapshot(1, 3, 3)
	w.Add(s)
	w.Add(s)
	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, 6, repo.count())
}

// ackLog 记录确认顺序
type ackLog struct {
	mu   sync.Mutex
	seen []int64
}

func (a *ackLog) record(t *testing.T, s *depth.Snapshot) kafka.Record {
	return record(t, s).WithAck(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.seen = append(a.seen, s.ID)
	})
}

func (a *ackLog) acked() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.seen...)
}

func TestWriter_AckAfterSave(t *testing.T) {
	repo := newMemRepo()
	w := NewWriter(repo, DefaultWriterConfig(), zap.NewNop())
	acks := &ackLog{}

	require.NoError(t, w.Handle(acks.record(t, snapshot(1, 1, 0))))
	require.NoError(t, w.Handle(acks.record(t, snapshot(2, 1, 0))))
	assert.Empty(t, acks.acked(), "buffered snapshots are not acknowledged")

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, []int64{1, 2}, acks.acked())
}

func TestWriter_FailedBatchRetried(t *testing.T) {
	repo := newMemRepo()
	w := NewWriter(repo, DefaultWriterConfig(), zap.NewNop())
	acks := &ackLog{}

	repo.setErr(errors.New("mysql gone"))
	require.NoError(t, w.Handle(acks.record(t, snapshot(1, 1, 0))))
	require.NoError(t, w.Handle(acks.record(t, snapshot(2, 1, 0))))
	require.Error(t, w.Flush(context.Background()))
	assert.Equal(t, 2, w.Pending())
	assert.Empty(t, acks.acked(), "failed batch must stay unacknowledged")

	require.NoError(t, w.Handle(acks.record(t, snapshot(3, 1, 0))))
	require.Error(t, w.Flush(context.Background()))
	assert.Equal(t, 3, w.Pending())

	repo.setErr(nil)
	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, 3, repo.count())
	assert.Equal(t, []int64{1, 2, 3}, acks.acked()) // 重试后仍按接收顺序确认
}

func TestWriter_FullBufferBlocksUntilSaved(t *testing.T) {
	repo := newMemRepo()
	cfg := DefaultWriterConfig()
	cfg.MaxPending = 2
	w := NewWriter(repo, cfg, zap.NewNop())
	acks := &ackLog{}

	repo.setErr(errors.New("mysql gone"))
	require.NoError(t, w.Handle(acks.record(t, snapshot(1, 1, 0))))
	require.NoError(t, w.Handle(acks.record(t, snapshot(2, 1, 0))))

	done := make(chan error, 1)
	go func() { done <- w.Handle(acks.record(t, snapshot(3, 1, 0))) }()

	assert.Eventually(t, func() bool { return w.Stats().Blocked == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Error(t, w.Flush(context.Background()))
	select {
	case <-done:
		t.Fatal("Handle returned while the buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	repo.setErr(nil)
	require.NoError(t, w.Flush(context.Background()))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Handle still blocked after the repository recovered")
	}
	assert.Equal(t, []int64{1, 2}, acks.acked())

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, []int64{1, 2, 3}, acks.acked())
}

func TestWriter_StopReleasesBlockedAdd(t *testing.T) {
	repo := newMemRepo()
	cfg := DefaultWriterConfig()
	cfg.MaxPending = 1
	w := NewWriter(repo, cfg, zap.NewNop())

	repo.setErr(errors.New("mysql gone"))
	w.Add(snapshot(1, 1, 0))

	done := make(chan struct{})
	go func() {
		w.Add(snapshot(2, 1, 0))
		close(done)
	}()
	assert.Eventually(t, func() bool { return w.Stats().Blocked == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not release the blocked Add")
	}
}

func TestWriter_BatchSizeTriggersFlush(t *testing.T) {
	repo := newMemRepo()
	cfg := DefaultWriterConfig()
	cfg.BatchSize = 2
	cfg.FlushInterval = time.Hour
	w := NewWriter(repo, cfg, zap.NewNop())

	src := &nopSource{}
	w.Start(src)
	assert.True(t, src.started)

	w.Add(snapshot(1, 1, 1))
	w.Add(snapshot(2, 1, 1))

	assert.Eventually(t, func() bool { return repo.count() == 4 }, 2*time.Second, 5*time.Millisecond)

	w.Add(snapshot(3, 1, 0))
	require.NoError(t, w.Stop())
	assert.True(t, src.stopped)
	assert.Equal(t, 5, repo.count())
}
