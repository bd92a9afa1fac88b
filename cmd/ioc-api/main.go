package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/hive-corporation/ioc-console/internal/adapter/auth"
	"github.com/hive-corporation/ioc-console/internal/adapter/exporter"
	"github.com/hive-corporation/ioc-console/internal/adapter/handler"
	"github.com/hive-corporation/ioc-console/internal/adapter/notifier"
	"github.com/hive-corporation/ioc-console/internal/adapter/repository"
	"github.com/hive-corporation/ioc-console/internal/adapter/storage"
	"github.com/hive-corporation/ioc-console/internal/config"
	"github.com/hive-corporation/ioc-console/internal/core/ports"
	"github.com/hive-corporation/ioc-console/internal/core/service"
	"github.com/hive-corporation/ioc-console/internal/dashboard"
	"github.com/hive-corporation/ioc-console/internal/logging"
	"github.com/hive-corporation/ioc-console/internal/metrics"
	"github.com/hive-corporation/ioc-console/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "ioc-api stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	metrics.InitMetrics()

	data, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return err
	}

	// Repository: Postgres when configured, otherwise an in-memory demo store.
	var repo ports.IOCRepository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := repository.RunMigrations(ctx, pool); err != nil {
			return err
		}
		repo = repository.NewPostgresRepository(pool)
		logger.Info(ctx, "using postgres repository")
	} else {
		repo = repository.NewMemoryRepository(
			repository.WithSeed(data.IOCs...),
			repository.WithLatency(cfg.RepositoryLatency),
		)
		logger.Info(ctx, "using in-memory repository", "seeded", len(data.IOCs))
	}

	creds, err := auth.NewStaticCredentials(data.Credentials, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	users := auth.NewStaticUserDirectory(data.Users)

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
		logger.Warn(ctx, "SESSION_SECRET not set, sessions will not survive a restart")
	}
	sessions := service.NewSessionProvider(creds, users, auth.NewJWTCodec(secret, cfg.SessionTTL), logger)

	// Slack notifier (optional - only if token configured)
	var notify ports.Notifier
	if cfg.Slack.Enabled() {
		notify = notifier.NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.Channel, cfg.Slack.MentionTeam,
			cfg.Notify, notifier.WithBaseURL(cfg.Slack.BaseURL))
		logger.Info(ctx, "slack notifier enabled", "channel", cfg.Slack.Channel)
	} else {
		logger.Warn(ctx, "slack notifier disabled (no SLACK_BOT_TOKEN)")
	}

	// Export publishing (optional - only if a bucket is configured)
	var objects ports.ObjectStore
	if cfg.Export.Enabled() {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.Export.Bucket,
			Region:          cfg.Export.Region,
			Endpoint:        cfg.Export.Endpoint,
			AccessKeyID:     cfg.Export.AccessKeyID,
			SecretAccessKey: cfg.Export.SecretAccessKey,
		}, logger)
		if err != nil {
			return err
		}
		objects = s3Store
		logger.Info(ctx, "export publishing enabled", "bucket", cfg.Export.Bucket)
	}

	stats := service.NewStatsService(repo)
	refresher := dashboard.NewRefresher(stats, cfg.DashboardRefreshInterval, logger)

	iocs := service.NewIOCService(repo, notify, logger, service.WithNotifyTimeout(cfg.NotifyTimeout))

	restHandler := handler.NewRestHandler(handler.Dependencies{
		IOCs:       iocs,
		Sessions:   sessions,
		Dashboard:  refresher,
		Exporter:   exporter.NewExporter(repo, objects),
		Store:      repo,
		Logger:     logger,
		SessionTTL: cfg.SessionTTL,
	})

	router := mux.NewRouter()
	restHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         ":" + cfg.RESTPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer, healthReporter := handler.NewGrpcServer(repo, 15*time.Second, logger)
	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCListenAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "REST API listening", "port", cfg.RESTPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rest server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info(gctx, "gRPC health listening", "addr", cfg.GRPCListenAddr)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error { return healthReporter.Run(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		grpcServer.GracefulStop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		iocs.Wait()
		return nil
	})

	return g.Wait()
}
