package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trivia-service/internal/app"
	"trivia-service/internal/config"
	"trivia-service/internal/infra/memory"
	"trivia-service/internal/logging"
	transport "trivia-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx = logging.IntoContext(ctx, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	repo, report, err := memory.LoadQuestionRepository(ctx, questionLoader(cfg, b, logger), logger)
	if err != nil {
		return err
	}
	if report.Accepted == 0 {
		return fmt.Errorf("no valid questions loaded (%d rejected)", len(report.Rejected))
	}

	store, err := statsStore(ctx, cfg, b)
	if err != nil {
		return err
	}
	agg := app.NewStatsAggregator(store, logger)
	dispatcher := app.NewStatsDispatcher(agg, cfg.Stats.QueueSize, logger)
	dispatcher.Start()
	defer dispatcher.Close()

	opts := app.ServiceOptions{
		DefaultCount: cfg.Session.DefaultCount,
		IdleTTL:      config.TTLDuration(cfg.Session.IdleTTL, 30*time.Minute),
		Persister:    questionPersister(cfg, b),
		Logger:       logger,
	}
	if gen := questionGenerator(cfg, logger); gen != nil {
		opts.Generator = gen
	} else {
		logger.Info().Msg("no AI API key configured; question generation disabled")
	}
	service := app.NewGameService(repo, nil, sessionStore(cfg, b, logger), agg, dispatcher, opts)

	router := transport.NewRouter(transport.NewHandler(service, logger), transport.NewWSHandler(service, logger), logger)
	server := transport.NewServer(transport.ServerConfig{
		Addr:         ":" + finalPort,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Int("questions", repo.Len()).
			Str("stats_backend", cfg.Stats.Backend).Msg("starting trivia service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return service.RunSweeper(gctx, config.TTLDuration(cfg.Session.SweepInterval, time.Minute))
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
