package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/request-relay/alert"
	"github.com/marcelsud/request-relay/config"
	"github.com/marcelsud/request-relay/internal/http/chi"
	"github.com/marcelsud/request-relay/metrics"
	"github.com/marcelsud/request-relay/origin"
	originredis "github.com/marcelsud/request-relay/origin/redis"
	"github.com/marcelsud/request-relay/relay"
	"github.com/marcelsud/request-relay/relay/postgres"
)

const shutdownTimeout = 30 * time.Second

/* main wires the packages together: storage, cache, deliverer, scheduler and
 * the two listeners. Imports point only downward: transport imports the
 * domain, the domain imports nothing above storage interfaces.
 */
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	repo, err := postgres.NewRepository(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close(ctx)
	repo.Backoff = relay.Backoff{
		BaseDelay: time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
		MaxDelay:  time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
		Factor:    2.0,
	}

	if err := postgres.Migrate(repo.DB); err != nil {
		return err
	}

	directory := repo.Origins()

	if cfg.OriginsFile != "" {
		if err := origin.Seed(ctx, directory, cfg.OriginsFile); err != nil {
			return err
		}
		logger.Info("origins seeded", slog.String("file", cfg.OriginsFile))
	}

	cache := origin.NewCache(directory, logger)
	if err := cache.Refresh(ctx); err != nil {
		return err
	}
	go cache.Run(ctx, time.Duration(cfg.CacheRefreshIntervalSeconds)*time.Second)

	var changes chi.ChangeNotifier
	if cfg.RedisAddr != "" {
		invalidator, err := originredis.NewInvalidator(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return err
		}
		defer invalidator.Close()
		go invalidator.Watch(ctx, cache.Refresh)
		changes = invalidator
	}

	recorder, err := metrics.NewRecorder()
	if err != nil {
		return err
	}
	defer recorder.Shutdown(context.Background())

	forwarder := relay.NewHTTPForwarder(&http.Client{})
	mailer := alert.NewMailer(cfg.AlertFrom, logger)
	deliverer := relay.NewDeliverer(repo, cache, forwarder, mailer, logger).
		WithRecorder(recorder)

	scheduler := relay.NewScheduler(repo, deliverer,
		time.Duration(cfg.RetrySweepIntervalSeconds)*time.Second,
		cfg.RetryBatchSize,
		logger,
	)
	go scheduler.Start(ctx)

	mgmtSrv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         cfg.ManagementAddr,
		Handler:      chi.Management(directory, repo, changes),
	}
	ingestSrv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         cfg.IngestAddr,
		Handler:      chi.Ingest(deliverer),
	}

	errShutdown := make(chan error, 2)
	go shutdown(mgmtSrv, ctx, errShutdown)
	go shutdown(ingestSrv, ctx, errShutdown)

	errServe := make(chan error, 1)
	go func() {
		logger.Info("management API listening", slog.String("addr", cfg.ManagementAddr))
		if err := mgmtSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errServe <- fmt.Errorf("management listener: %w", err)
		}
	}()

	logger.Info("ingest listening", slog.String("addr", cfg.IngestAddr))
	if err := ingestSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ingest listener: %w", err)
	}

	select {
	case err := <-errServe:
		return err
	default:
	}

	for i := 0; i < 2; i++ {
		if err := <-errShutdown; err != nil {
			return err
		}
	}
	return nil
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	if err != nil {
		errShutdown <- err
		return
	}
	errShutdown <- nil
}
