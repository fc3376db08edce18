package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotbook/internal/api"
	"slotbook/internal/availability"
	"slotbook/internal/cache"
	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/events"
	"slotbook/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultHTTPAddress = ":8080"

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the availability HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, &logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	loc := cfg.Location()

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	store := cache.New(db, rdb, cfg.CacheTTL(), logger)

	bus := events.NewBus(logger)
	store.Subscribe(bus)
	db.UseEvents(bus)

	// Seed from business.yaml and keep following it.
	err = config.WatchBusiness(ctx, cfg.BusinessConfigPath, cfg.ReloadInterval(), logger, func(bf *config.BusinessFile) {
		if err := db.SyncFromConfig(ctx, bf, loc); err != nil {
			logger.Error().Err(err).Msg("failed to apply business config")
		}
	})
	if err != nil {
		return fmt.Errorf("load business config: %w", err)
	}

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, database.BackupOptions{
			Dir:       cfg.Backup.Path,
			Interval:  time.Duration(cfg.Backup.IntervalHours) * time.Hour,
			Retention: time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour,
		}, logger)
		go backups.Start(ctx)
	}

	engine := availability.NewEngine(store, availability.Options{
		Granularity:    cfg.Granularity(),
		MaxConcurrency: cfg.Engine.MaxConcurrency,
	}, logger)

	opts := api.Options{
		Location:   loc,
		MinAdvance: cfg.BookingMinAdvance(),
		MaxAdvance: cfg.BookingMaxAdvance(),
		RateLimit:  cfg.HTTP.RateLimitRPS,
		RateBurst:  cfg.HTTP.RateLimitBurst,
		Timeout:    cfg.RequestTimeout(),
		Ready: map[string]func(context.Context) error{
			"db": db.PingContext,
		},
	}
	if rdb != nil {
		opts.Ready["redis"] = store.Ping
	}
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		opts.Metrics = promhttp.Handler()
	}

	addr := cfg.HTTP.Address
	if addr == "" {
		addr = defaultHTTPAddress
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(engine, opts, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("slotbook API started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info().Msg("slotbook API stopped")
	return nil
}
