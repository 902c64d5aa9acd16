package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examena/examena-backend/internal/config"
)

const (
	// SweepBatchSize bounds how many expired sessions one tick finalizes.
	SweepBatchSize = 100
	// sweepLockTTL bounds how long a crashed instance holds the lock.
	sweepLockTTL = 5 * time.Minute
)

// SessionSweeper finalizes expired in-progress sessions.
type SessionSweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// ExpiryWorker periodically finalizes sessions whose deadline has
// passed, so an abandoned session does not report in_progress forever.
// Submit still evaluates the deadline lazily; the sweep only bounds
// staleness. A Redis lock elects one sweeping instance at a time.
type ExpiryWorker struct {
	sweeper  SessionSweeper
	rdb      *redis.Client
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sweeper SessionSweeper, rdb *redis.Client, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		sweeper:  sweeper,
		rdb:      rdb,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info().Msg("Sweep disabled")
		return
	}

	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	if !w.acquireLock(ctx) {
		return
	}
	defer w.releaseLock(ctx)

	swept, err := w.sweeper.SweepExpired(ctx, SweepBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("Sweep failed")
		return
	}
	if swept > 0 {
		w.log.Info().Int("count", swept).Msg("Finalized expired sessions")
	}
}

// acquireLock elects this instance as the sweeper via SETNX. Without
// Redis the worker sweeps unconditionally (single-instance deploy).
func (w *ExpiryWorker) acquireLock(ctx context.Context) bool {
	if w.rdb == nil {
		return true
	}
	ok, err := w.rdb.SetNX(ctx, config.CacheKey.ExpirySweepLockKey(), 1, sweepLockTTL).Result()
	if err != nil {
		w.log.Error().Err(err).Msg("Sweep lock error")
		return false
	}
	return ok
}

func (w *ExpiryWorker) releaseLock(ctx context.Context) {
	if w.rdb == nil {
		return
	}
	if err := w.rdb.Del(ctx, config.CacheKey.ExpirySweepLockKey()).Err(); err != nil {
		w.log.Warn().Err(err).Msg("Sweep lock release failed")
	}
}
