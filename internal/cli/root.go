// Package cli реализует административную утилиту redcajeros-admin:
// миграции, создание администратора и ручную обработку заявок на оплату.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/redcajeros/internal/app/redcajeros"
	"github.com/magabrotheeeer/redcajeros/internal/cache"
	"github.com/magabrotheeeer/redcajeros/internal/config"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/rabbitmq"
	"github.com/magabrotheeeer/redcajeros/internal/services/billing"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "redcajeros-admin",
	Short:         "Administrative tasks for RedCajeros",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to the YAML config")
}

// Execute запускает корневую команду с контекстом ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is empty, use --config or CONFIG_PATH")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("redcajeros-admin requires storage driver %q", config.DriverPostgres)
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// environment открытое хранилище, сервисы и функция освобождения ресурсов.
type environment struct {
	cfg      *config.Config
	services *redcajeros.Services
	close    func()
}

func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	repo, closeStorage, err := redcajeros.OpenStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(ctx, cfg.RedisConnection)
	if err != nil {
		_ = closeStorage()
		return nil, err
	}
	closers := []func() error{store.Close, closeStorage}

	var publisher billing.Publisher = rabbitmq.Discard{}
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			logger.Warn("rabbitmq unavailable, notifications are skipped", sl.Err(err))
		} else if ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues()); err != nil {
			_ = conn.Close()
			logger.Warn("rabbitmq channel unavailable, notifications are skipped", sl.Err(err))
		} else {
			publisher = rabbitmq.NewPublisher(ch)
			closers = append([]func() error{ch.Close, conn.Close}, closers...)
		}
	}
	services := redcajeros.NewServices(cfg, repo, store, publisher, logger)

	return &environment{
		cfg:      cfg,
		services: services,
		close: func() {
			for _, c := range closers {
				_ = c()
			}
		},
	}, nil
}
