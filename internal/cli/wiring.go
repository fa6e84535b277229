package cli

import (
	"context"
	"fmt"
	"time"

	"async-quiz-service/internal/app"
	"async-quiz-service/internal/config"
	"async-quiz-service/internal/infra/memory"
	"async-quiz-service/internal/infra/postgres"
	redisstore "async-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// backends holds the connections opened for a service and closes them together.
type backends struct {
	redis  *redis.Client
	pool   *pgxpool.Pool
	closer []func()
}

func (b *backends) Close() {
	for i := len(b.closer) - 1; i >= 0; i-- {
		b.closer[i]()
	}
}

// storePlan names the backend each store is built on.
type storePlan struct {
	Documents   string
	Index       string
	Archive     string
	Leaderboard string
}

// planStores picks a backend per store. The index lives with the documents
// so a listing row is never written without its quiz. The archive prefers
// postgres, then redis, so its version outlives the process whenever the
// leaderboard does.
func planStores(cfg config.Config) (storePlan, error) {
	hasRedis, hasPostgres := cfg.Redis.Addr != "", cfg.Postgres.URL != ""
	plan := storePlan{Documents: cfg.Store.Documents, Leaderboard: cfg.Store.Leaderboard}
	if plan.Documents == "" {
		plan.Documents = config.BackendMemory
	}
	if plan.Leaderboard == "" {
		plan.Leaderboard = config.BackendMemory
	}

	switch plan.Documents {
	case config.BackendMemory:
	case config.BackendPostgres:
		if !hasPostgres {
			return storePlan{}, fmt.Errorf("documents backend %q requires postgres.url", plan.Documents)
		}
	case config.BackendRedis:
		if !hasRedis {
			return storePlan{}, fmt.Errorf("documents backend %q requires redis.addr", plan.Documents)
		}
	default:
		return storePlan{}, fmt.Errorf("unknown documents backend %q", plan.Documents)
	}
	plan.Index = plan.Documents

	switch plan.Leaderboard {
	case config.BackendMemory:
	case config.BackendRedis:
		if !hasRedis {
			return storePlan{}, fmt.Errorf("leaderboard backend %q requires redis.addr", plan.Leaderboard)
		}
	default:
		return storePlan{}, fmt.Errorf("unknown leaderboard backend %q", plan.Leaderboard)
	}

	switch {
	case hasPostgres:
		plan.Archive = config.BackendPostgres
	case hasRedis:
		plan.Archive = config.BackendRedis
	default:
		plan.Archive = config.BackendMemory
	}
	return plan, nil
}

// buildService opens the configured backends and assembles the quiz service.
func buildService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.QuizService, *backends, error) {
	plan, err := planStores(cfg)
	if err != nil {
		return nil, nil, err
	}
	b := &backends{}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closer = append(b.closer, func() { _ = b.redis.Close() })
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	deps := app.Deps{Logger: logger}
	budget := cfg.Quiz.MaxRetries

	var db *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.closer = append(b.closer, pool.Close)

		db = postgres.OpenBun(cfg.Postgres.URL)
		b.closer = append(b.closer, func() { _ = db.Close() })

		deps.Membership = postgres.NewMembershipDirectory(pool)
		deps.Profiles = app.NewNameChain(logger, postgres.NewProfileDirectory(pool), memory.StaticNames(cfg.Directory.Names))
	} else {
		membership := memory.NewMembership()
		for group, members := range cfg.Directory.Groups {
			for _, uid := range members {
				membership.Add(group, uid)
			}
		}
		deps.Membership = membership
		deps.Profiles = app.NewNameChain(logger, memory.StaticNames(cfg.Directory.Names))
	}

	switch plan.Documents {
	case config.BackendPostgres:
		deps.Documents = postgres.NewDocumentStore(b.pool, budget)
		deps.Index = postgres.NewQuizIndex(b.pool)
	case config.BackendRedis:
		deps.Documents = redisstore.NewDocumentStore(b.redis, budget)
		deps.Index = redisstore.NewQuizIndex(b.redis)
	default:
		deps.Documents = memory.NewDocumentStore(budget)
		deps.Index = memory.NewQuizIndex()
	}

	switch plan.Archive {
	case config.BackendPostgres:
		deps.Archive = postgres.NewAttemptArchive(db)
	case config.BackendRedis:
		deps.Archive = redisstore.NewAttemptArchive(b.redis)
	default:
		deps.Archive = memory.NewAttemptArchive()
	}

	if plan.Leaderboard == config.BackendRedis {
		deps.Views = redisstore.NewLeaderboardStore(b.redis, budget)
	} else {
		deps.Views = memory.NewLeaderboardStore()
	}

	loader := app.NewDetailLoader(deps.Documents)
	detailTTL := config.TTLDuration(cfg.Quiz.DetailTTL, 10*time.Minute)
	if b.redis != nil {
		deps.Details = redisstore.NewDetailCache(b.redis, loader, config.TTLDuration(cfg.Redis.TTL, detailTTL))
	} else {
		deps.Details = memory.NewDetailCache(loader, detailTTL)
	}

	logger.Info("quiz service wired",
		zap.String("documents", plan.Documents),
		zap.String("index", plan.Index),
		zap.String("archive", plan.Archive),
		zap.String("leaderboard", plan.Leaderboard),
	)
	return app.NewQuizService(deps), b, nil
}
