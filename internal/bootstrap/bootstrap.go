// Package bootstrap builds the storage and delivery dependencies shared by
// the server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/database"
	"github.com/stemsi/exstem-assess/internal/notifier"
	"github.com/stemsi/exstem-assess/internal/repository"
	"github.com/stemsi/exstem-assess/internal/repository/memstore"
	"github.com/stemsi/exstem-assess/internal/service"
)

// Stores bundles the store implementations picked by STORE_DRIVER.
type Stores struct {
	Sessions service.SessionStore
	Cache    service.ExpiryCache
	Tests    service.TestStore
	Results  service.ResultStore
	Profiles service.ProfileStore

	// Pool and Redis are nil when the backend is not in use.
	Pool  *pgxpool.Pool
	Redis *redis.Client
	// Memory is set for the in-process driver so tools can seed it.
	Memory *memstore.Store
}

// Close releases the connections held by s.
func (s *Stores) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStores connects the configured backend. Postgres mode requires Redis;
// memory mode uses it only when it answers.
func OpenStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := memstore.New()
		s := &Stores{
			Sessions: mem,
			Cache:    mem,
			Tests:    mem,
			Results:  mem.Results(),
			Profiles: mem,
			Memory:   mem,
		}
		if rdb, err := database.NewRedisClient(ctx, cfg, log); err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, async declaration disabled")
		} else {
			s.Redis = rdb
		}
		log.Info().Msg("Using in-memory store")
		return s, nil

	case config.StoreDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &Stores{
			Sessions: repository.NewExamSessionRepository(pool),
			Cache:    repository.NewSessionCache(rdb),
			Tests:    repository.NewTestRepository(pool),
			Results:  repository.NewResultRepository(pool),
			Profiles: repository.NewProfileRepository(pool),
			Pool:     pool,
			Redis:    rdb,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewSender returns the SMTP sender, wrapped with retries when configured,
// or a sender that always reports ErrNotConfigured.
func NewSender(cfg config.SMTPConfig, log zerolog.Logger) (notifier.Sender, error) {
	if !cfg.Enabled() {
		log.Warn().Msg("SMTP not configured, result emails are disabled")
		return notifier.NewDisabledSender(log), nil
	}

	smtp := notifier.NewSMTPSender(cfg)
	if cfg.MaxRetries <= 0 {
		return smtp, nil
	}

	backoff, err := notifier.ExponentialBackoff(500*time.Millisecond, 10*time.Second, int32(cfg.MaxRetries))
	if err != nil {
		return nil, fmt.Errorf("smtp retry policy: %w", err)
	}
	return notifier.NewRetrySender(smtp, backoff), nil
}
