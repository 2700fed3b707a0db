package worker

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/service"
)

type fakeStats struct {
	mu       sync.Mutex
	bulkErr  error
	failUser int64
	bulk     [][]int64
	single   []int64
}

func (f *fakeStats) Rebuild(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.single = append(f.single, userID)
	if userID == f.failUser {
		return errors.New("rebuild failed")
	}
	return nil
}

func (f *fakeStats) RebuildMany(_ context.Context, userIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk = append(f.bulk, slices.Clone(userIDs))
	return f.bulkErr
}

func (f *fakeStats) bulkCalls() [][]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.bulk)
}

func newTestWorker(t *testing.T, stats StatsRebuilder) (*StatsWorker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStatsWorker(stats, rdb, zerolog.Nop()), mr
}

func runWorker(t *testing.T, w *StatsWorker) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func TestStatsWorkerBatchesAndDedupes(t *testing.T) {
	stats := &fakeStats{}
	w, mr := newTestWorker(t, stats)
	w.BatchSize = 3

	queue := config.WorkerKey.PersistStatsQueue
	if _, err := mr.Push(queue,
		`{"user_id":1,"attempt_id":10}`,
		`not json`,
		`{"user_id":2,"attempt_id":11}`,
		`{"user_id":1,"attempt_id":12}`,
	); err != nil {
		t.Fatal(err)
	}

	stop := runWorker(t, w)
	deadline := time.Now().Add(3 * time.Second)
	for len(stats.bulkCalls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("batch never flushed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	stop()

	calls := stats.bulkCalls()
	if len(calls) != 1 || !slices.Equal(calls[0], []int64{1, 2}) {
		t.Fatalf("RebuildMany calls = %v, want [[1 2]]", calls)
	}
}

func TestStatsWorkerFlushesOnShutdown(t *testing.T) {
	stats := &fakeStats{}
	w, mr := newTestWorker(t, stats)
	w.BatchTimeout = time.Hour

	queue := config.WorkerKey.PersistStatsQueue
	if _, err := mr.Push(queue, `{"user_id":7,"attempt_id":1}`); err != nil {
		t.Fatal(err)
	}

	stop := runWorker(t, w)
	deadline := time.Now().Add(3 * time.Second)
	for mr.Exists(queue) {
		if time.Now().After(deadline) {
			t.Fatal("job never consumed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	stop()

	calls := stats.bulkCalls()
	if len(calls) != 1 || !slices.Equal(calls[0], []int64{7}) {
		t.Fatalf("RebuildMany calls = %v, want [[7]]", calls)
	}
}

func TestStatsWorkerFallbackRequeuesFailures(t *testing.T) {
	stats := &fakeStats{bulkErr: errors.New("deadlock"), failUser: 2}
	w, mr := newTestWorker(t, stats)

	w.flushSafe(context.Background(), []service.StatsJob{{UserID: 1}, {UserID: 2}, {UserID: 3}})

	if !slices.Equal(stats.single, []int64{1, 2, 3}) {
		t.Fatalf("fallback rebuilds = %v", stats.single)
	}
	got, err := mr.List(config.WorkerKey.PersistStatsQueue)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != `{"user_id":2,"attempt_id":0}` {
		t.Fatalf("requeued = %v", got)
	}
}
