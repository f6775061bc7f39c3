package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guardbot/internal/analytics"
	"guardbot/internal/bot"
	"guardbot/internal/config"
	"guardbot/internal/modules/audit"
	"guardbot/internal/protection"
	"guardbot/internal/storage"

	"github.com/redis/rueidis"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	app := &cli.Command{
		Name:   "guardbot",
		Usage:  "Discord community protection bot",
		Flags:  []cli.Flag{configFlag()},
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect to Discord and protect guilds",
				Flags:  []cli.Flag{configFlag()},
				Action: runBot,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Flags:  []cli.Flag{configFlag()},
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the YAML config file",
	}
}

func setup(ctx context.Context, c *cli.Command) (config.Config, *zap.Logger, *storage.Store, error) {
	if path := c.String("config"); path != "" {
		if err := os.Setenv("CONFIG_PATH", path); err != nil {
			return config.Config{}, nil, nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = logger.Sync()
		return config.Config{}, nil, nil, fmt.Errorf("storage init failed: %w", err)
	}
	store.SetDefaults(cfg.Defaults())
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		_ = logger.Sync()
		return config.Config{}, nil, nil, fmt.Errorf("migrations failed: %w", err)
	}
	return cfg, logger, store, nil
}

func runMigrate(ctx context.Context, c *cli.Command) error {
	_, logger, store, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	defer store.Close()

	logger.Info("migrations applied")
	return nil
}

func runBot(ctx context.Context, c *cli.Command) error {
	cfg, logger, store, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	defer store.Close()

	var configs protection.ConfigStore = store
	if cfg.Redis.Enabled() {
		client, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress: []string{cfg.Redis.Addr},
			Username:    cfg.Redis.Username,
			Password:    cfg.Redis.Password,
			SelectDB:    cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("redis unavailable, config cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			configs = storage.NewConfigCache(store, client, cfg.CacheTTL(), logger)
			logger.Info("config cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	auditLogger := audit.NewLogger(store, logger)
	analyticsService := analytics.New(store)

	botSvc, err := bot.New(cfg, logger, store, configs, auditLogger, analyticsService)
	if err != nil {
		return fmt.Errorf("bot init failed: %w", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := botSvc.Start(runCtx); err != nil {
		return fmt.Errorf("bot start failed: %w", err)
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	<-runCtx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	botSvc.Close(shutdownCtx)
	return nil
}
