package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trivia-service/internal/app"
	"trivia-service/internal/config"
	"trivia-service/internal/generator"
	"trivia-service/internal/infra/jsonfile"
	"trivia-service/internal/infra/memory"
	"trivia-service/internal/infra/postgres"
	redisinfra "trivia-service/internal/infra/redis"
	"trivia-service/internal/infra/sqlite"
	"trivia-service/internal/logging"
)

const appName = "trivia-service"

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(appName, cfg.Log.Env, cfg.Log.Level)
}

// backends holds the external connections a command opened; close releases them.
type backends struct {
	redis  *redis.Client
	pool   *pgxpool.Pool
	sqlite *sqlite.StatsStore
}

func (b *backends) close() {
	if b.sqlite != nil {
		_ = b.sqlite.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func needsPostgres(cfg config.Config) bool {
	return cfg.Questions.Source == "postgres" || cfg.Stats.Backend == "postgres"
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}
	if needsPostgres(cfg) {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			b.close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		b.pool = pool
	}
	return b, nil
}

// questionLoader picks the configured question source. Postgres reads go
// through the Redis cache when Redis is configured.
func questionLoader(cfg config.Config, b *backends, logger zerolog.Logger) memory.QuestionLoader {
	if cfg.Questions.Source == "postgres" {
		var loader memory.QuestionLoader = postgres.NewQuestionStore(b.pool)
		if b.redis != nil {
			loader = redisinfra.NewQuestionCache(b.redis, loader, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute), logger)
		}
		return loader
	}
	if cfg.Questions.File != "" {
		return jsonfile.NewStore(cfg.Questions.File)
	}
	logger.Warn().Msg("no question file configured; using built-in questions")
	return memory.NewStaticQuestionLoader(memory.DefaultQuestions())
}

// questionPersister returns where generated questions are written, or nil.
func questionPersister(cfg config.Config, b *backends) app.QuestionPersister {
	if !cfg.Questions.PersistGenerated {
		return nil
	}
	if cfg.Questions.Source == "postgres" {
		return postgres.NewQuestionStore(b.pool)
	}
	if cfg.Questions.File != "" {
		return jsonfile.NewStore(cfg.Questions.File)
	}
	return nil
}

func statsStore(ctx context.Context, cfg config.Config, b *backends) (app.StatsStore, error) {
	switch cfg.Stats.Backend {
	case "redis":
		return redisinfra.NewStatsStore(b.redis), nil
	case "postgres":
		return postgres.NewStatsStore(b.pool), nil
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.sqlite = store
		return store, nil
	default:
		return memory.NewStatsStore(), nil
	}
}

func sessionStore(cfg config.Config, b *backends, logger zerolog.Logger) app.SessionRepository {
	if cfg.Session.Store == "redis" {
		return redisinfra.NewSessionStore(b.redis, config.TTLDuration(cfg.Session.IdleTTL, 30*time.Minute), logger)
	}
	return memory.NewSessionStore()
}

// questionGenerator returns nil when no API key is configured.
func questionGenerator(cfg config.Config, logger zerolog.Logger) *generator.Client {
	if cfg.AI.APIKey == "" {
		return nil
	}
	return generator.NewClient(generator.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: config.TTLDuration(cfg.AI.Timeout, 30*time.Second),
	}, logger)
}
