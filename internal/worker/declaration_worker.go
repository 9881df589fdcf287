package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/service"
)

const (
	DeclarePollTimeout = 1 * time.Second
	DeclareLockTTL     = 10 * time.Minute
	MaxJobAttempts     = 3
)

// Queue is the subset of redis.Cmdable the worker needs.
type Queue interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Declarer runs one declaration under a fixed run id.
type Declarer interface {
	DeclareRun(ctx context.Context, runID, testID, declaredBy string) (*model.DeclarationSummary, error)
}

// DeclarationWorker consumes declare_results_queue. At most one run per
// test is in flight across all workers.
type DeclarationWorker struct {
	queue    Queue
	declarer Declarer
	log      zerolog.Logger
}

// NewDeclarationWorker creates a new DeclarationWorker.
func NewDeclarationWorker(queue Queue, declarer Declarer, log zerolog.Logger) *DeclarationWorker {
	return &DeclarationWorker{
		queue:    queue,
		declarer: declarer,
		log:      log.With().Str("component", "declaration_worker").Logger(),
	}
}

// Enqueue schedules job for background processing.
func (w *DeclarationWorker) Enqueue(ctx context.Context, job model.DeclarationJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode declaration job: %w", err)
	}
	if err := w.queue.RPush(ctx, config.WorkerKey.DeclareResultsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue declaration job: %w", err)
	}
	w.log.Info().Str("run_id", job.RunID).Str("test_id", job.TestID).Msg("Declaration queued")
	return nil
}

// Start begins the worker loop. Call in a goroutine. A job already taken
// off the queue is finished even after ctx is cancelled.
func (w *DeclarationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *DeclarationWorker) processNext(ctx context.Context) {
	item, err := w.queue.BLPop(ctx, DeclarePollTimeout, config.WorkerKey.DeclareResultsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			// Avoid spinning while Redis is down.
			time.Sleep(DeclarePollTimeout)
		}
		return
	}
	if len(item) < 2 {
		return
	}

	var job model.DeclarationJob
	if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return
	}

	w.handle(context.WithoutCancel(ctx), job)
}

func (w *DeclarationWorker) handle(ctx context.Context, job model.DeclarationJob) {
	log := w.log.With().Str("run_id", job.RunID).Str("test_id", job.TestID).Int("attempt", job.Attempt).Logger()

	lockKey := config.CacheKey.DeclarationLockKey(job.TestID)
	ok, err := w.queue.SetNX(ctx, lockKey, job.RunID, DeclareLockTTL).Result()
	if err != nil {
		log.Error().Err(err).Msg("Declaration lock failed")
		w.requeue(ctx, log, job)
		return
	}
	if !ok {
		// The run holding the lock drains the same results.
		log.Info().Msg("Declaration already running for test, dropping job")
		return
	}
	defer func() {
		if err := w.queue.Del(ctx, lockKey).Err(); err != nil {
			log.Warn().Err(err).Msg("Declaration unlock failed")
		}
	}()

	summary, err := w.declarer.DeclareRun(ctx, job.RunID, job.TestID, job.DeclaredBy)
	switch {
	case err == nil:
		log.Info().Int("declared", summary.DeclaredCount).Int("emails_sent", summary.EmailsSent).Msg("Queued declaration finished")
	case errors.Is(err, service.ErrNotFound):
		log.Warn().Msg("Test no longer exists, dropping job")
	default:
		log.Error().Err(err).Msg("Queued declaration failed")
		w.requeue(ctx, log, job)
	}
}

func (w *DeclarationWorker) requeue(ctx context.Context, log zerolog.Logger, job model.DeclarationJob) {
	job.Attempt++
	if job.Attempt >= MaxJobAttempts {
		log.Error().Msg("Declaration job exhausted its attempts")
		return
	}
	raw, _ := json.Marshal(job)
	if err := w.queue.RPush(ctx, config.WorkerKey.DeclareResultsQueue, raw).Err(); err != nil {
		log.Error().Err(err).Msg("Requeue failed")
	}
}
