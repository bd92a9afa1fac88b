package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/hive-corporation/ioc-console/internal/adapter/notifier"
	"github.com/hive-corporation/ioc-console/internal/adapter/repository"
	"github.com/hive-corporation/ioc-console/internal/config"
	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/core/ports"
	"github.com/hive-corporation/ioc-console/internal/core/service"
	"github.com/hive-corporation/ioc-console/internal/logging"
	"github.com/hive-corporation/ioc-console/internal/metrics"
	"github.com/hive-corporation/ioc-console/internal/seed"
)

func main() {
	file := flag.String("file", "iocs.yaml", "YAML file with an 'iocs' list (use - for stdin)")
	workers := flag.Int("workers", 8, "concurrent inserts")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall time limit")
	flag.Parse()

	if err := checkFlags(*workers, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, logger, *file, *workers); err != nil {
		logger.Error(ctx, "ingestion failed", "error", err)
		os.Exit(1)
	}
}

// checkFlags rejects values errgroup.SetLimit and context.WithTimeout
// cannot work with: zero workers would block the first insert forever.
func checkFlags(workers int, timeout time.Duration) error {
	if workers < 1 {
		return fmt.Errorf("-workers must be at least 1, got %d", workers)
	}
	if timeout <= 0 {
		return fmt.Errorf("-timeout must be positive, got %s", timeout)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger, path string, workers int) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	metrics.InitMetrics()

	in := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}

	records, err := seed.ReadIOCs(in)
	if err != nil {
		return err
	}
	logger.Info(ctx, "records loaded", "file", path, "count", len(records))

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return err
	}

	var notify ports.Notifier
	if cfg.Slack.Enabled() {
		notify = notifier.NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.Channel, cfg.Slack.MentionTeam,
			cfg.Notify, notifier.WithBaseURL(cfg.Slack.BaseURL))
	}
	iocs := service.NewIOCService(repository.NewPostgresRepository(pool), notify, logger,
		service.WithNotifyTimeout(cfg.NotifyTimeout))
	defer iocs.Wait()

	var saved, rejected atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range records {
		g.Go(func() error {
			_, err := iocs.Create(gctx, rec)
			switch {
			case err == nil:
				saved.Add(1)
				return nil
			case errors.Is(err, domain.ErrValidation):
				rejected.Add(1)
				logger.Warn(gctx, "record rejected", "index", i, "value", rec.Value, "error", err)
				return nil
			default:
				// Store failures abort the run.
				return fmt.Errorf("record %d: %w", i, err)
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "ingestion finished", "saved", saved.Load(), "rejected", rejected.Load())
	return nil
}
