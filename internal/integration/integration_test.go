package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
	"trivia-service/internal/infra/postgres"
	pgmigrations "trivia-service/internal/infra/postgres/migrations"
	infraredis "trivia-service/internal/infra/redis"
)

// Two service instances share one Postgres question table, one Redis question
// cache and one stats backend; concurrent games on both must add up exactly.
func TestSharedStatsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	questions := postgres.NewQuestionStore(pool)
	for _, q := range memory.DefaultQuestions() {
		if err := questions.Append(ctx, q); err != nil {
			t.Fatalf("seed %s: %v", q.ID, err)
		}
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	backends := map[string]app.StatsStore{
		"postgres": postgres.NewStatsStore(pool),
		"redis":    infraredis.NewStatsStore(redisClient),
	}
	for name, store := range backends {
		t.Run(name, func(t *testing.T) {
			playConcurrently(t, ctx, questions, redisClient, store)
		})
	}
}

func playConcurrently(t *testing.T, ctx context.Context, source memory.QuestionLoader, redisClient *goredis.Client, store app.StatsStore) {
	t.Helper()
	const perInstance = 20

	var (
		services    []*app.GameService
		dispatchers []*app.StatsDispatcher
	)
	for i := 0; i < 2; i++ {
		cache := infraredis.NewQuestionCache(redisClient, source, time.Minute, zerolog.Nop())
		repo, report, err := memory.LoadQuestionRepository(ctx, cache, zerolog.Nop())
		if err != nil || report.Accepted != len(memory.DefaultQuestions()) {
			t.Fatalf("load questions: %v (%+v)", err, report)
		}
		agg := app.NewStatsAggregator(store, zerolog.Nop())
		dispatcher := app.NewStatsDispatcher(agg, 64, zerolog.Nop())
		dispatcher.Start()
		sessions := infraredis.NewSessionStore(redisClient, time.Minute, zerolog.Nop())
		services = append(services, app.NewGameService(repo, nil, sessions, agg, dispatcher, app.ServiceOptions{Logger: zerolog.Nop()}))
		dispatchers = append(dispatchers, dispatcher)
	}

	before, err := store.Get(ctx, "default_001")
	if err != nil {
		t.Fatalf("stats before: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2*perInstance)
	for _, svc := range services {
		for i := 0; i < perInstance; i++ {
			wg.Add(1)
			go func(svc *app.GameService, correct bool) {
				defer wg.Done()
				info, err := svc.CreateSession(ctx, domain.Filter{Category: "general"}, 1)
				if err != nil {
					errs <- err
					return
				}
				if _, err := svc.CurrentQuestion(ctx, info.ID); err != nil {
					errs <- err
					return
				}
				choice := 0 // Paris is option 2
				if correct {
					choice = 2
				}
				if _, err := svc.SubmitAnswer(ctx, info.ID, choice); err != nil {
					errs <- err
				}
			}(svc, i%4 == 0)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("game failed: %v", err)
	}
	for _, d := range dispatchers {
		d.Close()
	}

	after, err := store.Get(ctx, "default_001")
	if err != nil {
		t.Fatalf("stats after: %v", err)
	}
	if got := after.TimesShown - before.TimesShown; got != 2*perInstance {
		t.Fatalf("expected %d exposures, got %d", 2*perInstance, got)
	}
	if got := after.TimesCorrect - before.TimesCorrect; got != 2*perInstance/4 {
		t.Fatalf("expected %d correct answers, got %d", 2*perInstance/4, got)
	}
	if after.TimesCorrect > after.TimesShown {
		t.Fatalf("correct exceeds shown: %+v", after)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "trivia"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/trivia?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
