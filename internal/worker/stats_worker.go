package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/service"
)

const (
	StatsBatchSize    = 50
	StatsBatchTimeout = 2 * time.Second
	StatsPollTimeout  = 1 * time.Second // BLPOP needs at least 1s
)

// StatsRebuilder recomputes per-user aggregates from the attempts table.
type StatsRebuilder interface {
	Rebuild(ctx context.Context, userID int64) error
	RebuildMany(ctx context.Context, userIDs []int64) error
}

// StatsWorker drains the stats queue and refreshes user aggregates in batches.
type StatsWorker struct {
	stats StatsRebuilder
	rdb   *redis.Client
	log   zerolog.Logger

	BatchSize    int
	BatchTimeout time.Duration
	PollTimeout  time.Duration
}

func NewStatsWorker(stats StatsRebuilder, rdb *redis.Client, log zerolog.Logger) *StatsWorker {
	return &StatsWorker{
		stats:        stats,
		rdb:          rdb,
		log:          log.With().Str("component", "stats_worker").Logger(),
		BatchSize:    StatsBatchSize,
		BatchTimeout: StatsBatchTimeout,
		PollTimeout:  StatsPollTimeout,
	}
}

// ─── Worker loop with batching ──────────────────────────────────────

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *StatsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("StatsWorker started")

	batch := make([]service.StatsJob, 0, w.BatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.BatchSize || time.Since(lastFlush) >= w.BatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested, flushing remaining batch")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, w.PollTimeout, config.WorkerKey.PersistStatsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var job service.StatsJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil || job.UserID <= 0 {
				w.log.Error().Err(err).Str("payload", item[1]).Msg("Invalid stats job")
				continue
			}
			batch = append(batch, job)
		}
	}
}

// ─── Flush ──────────────────────────────────────────────────────────

// flushSafe rebuilds every user in the batch once. When the bulk rebuild
// fails each user is retried alone and failures go back on the queue.
func (w *StatsWorker) flushSafe(ctx context.Context, batch []service.StatsJob) {
	if len(batch) == 0 {
		return
	}

	seen := make(map[int64]bool, len(batch))
	users := make([]int64, 0, len(batch))
	for _, j := range batch {
		if !seen[j.UserID] {
			seen[j.UserID] = true
			users = append(users, j.UserID)
		}
	}

	err := w.stats.RebuildMany(ctx, users)
	if err == nil {
		w.log.Debug().Int("jobs", len(batch)).Int("users", len(users)).Msg("Stats batch flushed")
		return
	}
	w.log.Warn().Err(err).Int("users", len(users)).Msg("Bulk stats rebuild failed, using fallback")

	for _, id := range users {
		if err := w.stats.Rebuild(ctx, id); err != nil {
			w.log.Error().Err(err).Int64("user_id", id).Msg("Stats rebuild failed, requeueing")
			raw, _ := json.Marshal(service.StatsJob{UserID: id})
			if err := w.rdb.RPush(context.Background(), config.WorkerKey.PersistStatsQueue, raw).Err(); err != nil {
				w.log.Error().Err(err).Int64("user_id", id).Msg("Requeue failed")
			}
		}
	}
}
