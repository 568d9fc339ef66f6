package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"trivia-service/internal/config"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/jsonfile"
	"trivia-service/internal/infra/postgres"
	pgmigrations "trivia-service/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations and can seed questions from a file.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, seed)
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "question file to import into postgres after migrating")
	return cmd
}

func runMigrations(ctx context.Context, configPath, seed string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	if seed == "" {
		return nil
	}
	return seedQuestions(ctx, cfg, seed)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	logger := newLogger(cfg)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}
	if err := migrator.Lock(ctx); err != nil {
		return err
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Info().Msg("no new migrations")
		return nil
	}
	logger.Info().Str("group", group.String()).Msg("migrations applied")
	return nil
}

func seedQuestions(ctx context.Context, cfg config.Config, path string) error {
	logger := newLogger(cfg)
	records, err := jsonfile.NewStore(path).LoadQuestions(ctx)
	var undecodable domain.RecordErrors
	if err != nil && !errors.As(err, &undecodable) {
		return err
	}
	for _, err := range undecodable {
		logger.Warn().Err(err).Str("file", path).Msg("skipping question record")
	}
	b, err := openBackends(ctx, withPostgresSource(cfg))
	if err != nil {
		return err
	}
	defer b.close()

	store := postgres.NewQuestionStore(b.pool)
	for _, q := range records {
		if err := store.Append(ctx, q); err != nil {
			return err
		}
	}
	logger.Info().Int("records", len(records)).Str("file", path).Msg("questions seeded")
	return nil
}

func withPostgresSource(cfg config.Config) config.Config {
	cfg.Questions.Source = "postgres"
	return cfg
}
