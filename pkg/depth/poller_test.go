package depth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"laminar.com/pkg/book"
)

var testMarket = book.Market{Owner: "0xb", BaseTag: "0xb::coin::FakeBaseCoin", QuoteTag: "0xb::coin::FakeQuoteCoin"}

// scriptedReader 依次返回预设的深度，用完后重复最后一个
type scriptedReader struct {
	mu     sync.Mutex
	script []func() (*book.Depth, error)
	calls  int
	levels []int
}

func (r *scriptedReader) Market() book.Market { return testMarket }

func (r *scriptedReader) Depth(_ context.Context, n int) (*book.Depth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, n)
	i := min(r.calls, len(r.script)-1)
	r.calls++
	return r.script[i]()
}

func depthOf(bid, ask uint64) func() (*book.Depth, error) {
	return func() (*book.Depth, error) {
		return book.NewDepth(
			[]book.Level{{Price: bid, Size: 1}},
			[]book.Level{{Price: ask, Size: 1}},
		), nil
	}
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []*Snapshot
	err   error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return s.err
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

func newTestPoller(t *testing.T, reader DepthReader, cfg PollerConfig, sinks ...Sink) *Poller {
	t.Helper()
	ids, err := NewIDGenerator(3)
	require.NoError(t, err)
	return NewPoller(reader, ids, cfg, zap.NewNop(), sinks...)
}

func TestPoller_PollOnce(t *testing.T) {
	reader := &scriptedReader{script: []func() (*book.Depth, error){depthOf(99, 101)}}
	sink := &recordingSink{}
	p := newTestPoller(t, reader, PollerConfig{Levels: 5, Interval: time.Second}, sink)
	sub := p.Broadcaster().Subscribe(1)

	snap, err := p.PollOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testMarket.Key(), snap.Book)
	assert.Equal(t, uint64(2), snap.Spread)
	assert.Equal(t, int64(3), NodeOf(snap.ID))
	assert.Equal(t, []int{5}, reader.levels)
	assert.Same(t, snap, <-sub)
	assert.Same(t, snap, p.Latest())
	assert.Equal(t, 1, sink.len())
}

func TestPoller_SkipUnchanged(t *testing.T) {
	reader := &scriptedReader{script: []func() (*book.Depth, error){
		depthOf(99, 101), depthOf(99, 101), depthOf(98, 101),
	}}
	sink := &recordingSink{}
	p := newTestPoller(t, reader, PollerConfig{Levels: 1, Interval: time.Second, SkipUnchanged: true}, sink)

	for i := 0; i < 3; i++ {
		_, err := p.PollOnce(context.Background())
		require.NoError(t, err)
	}

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Polls)
	assert.Equal(t, int64(2), stats.Published)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Equal(t, 2, sink.len())
	assert.Equal(t, uint64(98), p.Latest().BestBid)
}

func TestPoller_ReadErrorKeepsLatest(t *testing.T) {
	boom := errors.New("node unavailable")
	reader := &scriptedReader{script: []func() (*book.Depth, error){
		depthOf(99, 101),
		func() (*book.Depth, error) { return nil, boom },
	}}
	p := newTestPoller(t, reader, PollerConfig{Levels: 1, Interval: time.Second})

	first, err := p.PollOnce(context.Background())
	require.NoError(t, err)

	_, err = p.PollOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Same(t, first, p.Latest())
	assert.Equal(t, int64(1), p.Stats().Errors)
}

func TestPoller_SinkFailureDoesNotStopOthers(t *testing.T) {
	reader := &scriptedReader{script: []func() (*book.Depth, error){depthOf(1, 2)}}
	bad := &recordingSink{err: errors.New("down")}
	good := &recordingSink{}
	p := newTestPoller(t, reader, PollerConfig{Levels: 1, Interval: time.Second}, bad, good)

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, good.len())
	assert.Equal(t, int64(1), p.Stats().SinkFails)
}

func TestPoller_StartStop(t *testing.T) {
	var n uint64
	var mu sync.Mutex
	reader := &scriptedReader{script: []func() (*book.Depth, error){
		func() (*book.Depth, error) {
			mu.Lock()
			defer mu.Unlock()
			n++
			return book.NewDepth([]book.Level{{Price: n, Size: 1}}, nil), nil
		},
	}}
	p := newTestPoller(t, reader, PollerConfig{Levels: 1, Interval: 5 * time.Millisecond, SkipUnchanged: true})
	sub := p.Broadcaster().Subscribe(64)

	p.Start(context.Background())

	var last int64
	for i := 0; i < 3; i++ {
		select {
		case snap := <-sub:
			assert.Greater(t, snap.ID, last)
			last = snap.ID
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for snapshot")
		}
	}

	p.Stop()
	p.Stop()

	// 订阅通道在退出后关闭
	for range sub {
	}
}

func TestPoller_ContextCancelStops(t *testing.T) {
	reader := &scriptedReader{script: []func() (*book.Depth, error){depthOf(1, 2)}}
	p := newTestPoller(t, reader, PollerConfig{Levels: 1, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
