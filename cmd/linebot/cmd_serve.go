package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minhducle291/linebot/internal/config"
	"github.com/minhducle291/linebot/internal/dataset"
	"github.com/minhducle291/linebot/internal/dedupe"
	"github.com/minhducle291/linebot/internal/delivery"
	"github.com/minhducle291/linebot/internal/gateway"
	"github.com/minhducle291/linebot/internal/line"
	"github.com/minhducle291/linebot/internal/report"
	"github.com/minhducle291/linebot/internal/scheduler"
	"github.com/minhducle291/linebot/internal/state"
	"github.com/minhducle291/linebot/internal/storage"
	"github.com/minhducle291/linebot/internal/webhook"
)

const shutdownTimeout = 15 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func newLINEClient(cfg *config.Config) *line.Client {
	return line.New(line.Config{
		BaseURL:     cfg.LINE.APIBaseURL,
		AccessToken: cfg.LINE.ChannelAccessToken,
		Timeout:     cfg.LINE.Timeout.Std(),
	})
}

// newGuard returns the dedupe guard and a function releasing it.
func newGuard(ctx context.Context, cfg *config.Config) (dedupe.Guard, func() error, error) {
	if cfg.Dedupe.Backend != "redis" {
		return dedupe.NewMemory(cfg.Dedupe.TTL.Std(), cfg.Dedupe.MaxEntries), func() error { return nil }, nil
	}
	r := dedupe.NewRedis(dedupe.RedisOptions{
		Addr:     cfg.Dedupe.Redis.Addr,
		Password: cfg.Dedupe.Redis.Password,
		DB:       cfg.Dedupe.Redis.DB,
		Prefix:   cfg.Dedupe.Redis.Prefix,
		TTL:      cfg.Dedupe.TTL.Std(),
	})
	if err := r.Ping(ctx); err != nil {
		r.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Dedupe.Redis.Addr, err)
	}
	return r, r.Close, nil
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Backend != "minio" {
		return storage.NewLocal(cfg.Storage.LocalDir, cfg.PublicBaseURL)
	}
	m, err := storage.NewMinIO(storage.MinIOOptions{
		Endpoint:  cfg.Storage.MinIO.Endpoint,
		AccessKey: cfg.Storage.MinIO.AccessKey,
		SecretKey: cfg.Storage.MinIO.SecretKey,
		UseTLS:    cfg.Storage.MinIO.UseTLS,
		Bucket:    cfg.Storage.MinIO.Bucket,
		PublicURL: cfg.Storage.MinIO.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func categories(cfg *config.Config) []report.Category {
	out := make([]report.Category, 0, len(cfg.Data.Categories))
	for _, c := range cfg.Data.Categories {
		out = append(out, report.Category{ID: c.ID, Title: c.Title})
	}
	return out
}

func newScheduler(cfg *config.Config, pusher scheduler.Pusher) (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	store := state.NewNotificationStore(cfg.Scheduler.NotificationsPath)
	return scheduler.New(store, pusher, loc, cfg.Scheduler.Slots), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newLINEClient(cfg)
	dispatcher := delivery.New(client,
		delivery.WithBackoff(cfg.Reply.Backoff.Std()),
		delivery.WithPushFallback(cfg.Reply.PushFallback),
	)

	guard, closeGuard, err := newGuard(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGuard()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}

	files := &dataset.Files{
		Cache:      dataset.NewCache(),
		DemandPath: cfg.Data.DemandPath,
		SalesPath:  cfg.Data.SalesPath,
		StoresPath: cfg.Data.StoresPath,
	}
	engine := report.NewEngine(files, store, report.Options{
		Categories:   categories(cfg),
		NearestMaxKm: cfg.Data.NearestMaxKm,
	})

	policy, err := gateway.ParseRedeliveryPolicy(cfg.Reply.RedeliveryPolicy)
	if err != nil {
		return err
	}
	pipeline := gateway.NewPipeline(guard, engine, dispatcher,
		gateway.WithResolveTimeout(cfg.Reply.ResolveTimeout.Std()),
		gateway.WithRedeliveryPolicy(policy),
	)

	gw := gateway.New(pipeline, int64(cfg.Workers), cfg.QueueSize)
	gw.Start(ctx)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = newScheduler(cfg, client)
		if err != nil {
			gw.Stop()
			return err
		}
		n := sched.Start()
		defer sched.Stop()
		slog.Info("scheduler started", "jobs", n, "timezone", cfg.Scheduler.Timezone)
	}

	var serverOpts []webhook.ServerOption
	if local, ok := store.(*storage.Local); ok {
		serverOpts = append(serverOpts, webhook.WithStaticDir(local.Dir()))
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           webhook.NewServer(cfg.LINE.ChannelSecret, gw, serverOpts...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("linebot started",
		"listen", cfg.HTTP.Listen,
		"workers", cfg.Workers,
		"queue_size", cfg.QueueSize,
		"dedupe", cfg.Dedupe.Backend,
		"storage", cfg.Storage.Backend,
		"redelivery_policy", string(policy),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

loop:
	for {
		select {
		case err := <-serveErr:
			if err != nil {
				slog.Error("http server error", "error", err)
			}
			break loop
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				files.Reload()
				if sched != nil {
					slog.Info("reloaded", "scheduler_jobs", sched.Reload())
				} else {
					slog.Info("reloaded datasets")
				}
				continue
			}
			slog.Info("shutting down", "signal", sig)
			break loop
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if !gw.WaitIdle(shutdownTimeout) {
		slog.Warn("queue not idle at shutdown")
	}
	gw.Stop()
	return nil
}
