// Package redcajeros собирает HTTP API RedCajeros: хранилище, кэш настроек,
// сервисы журнала, расчётов и подписки, публикацию событий и маршруты.
package redcajeros

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/redcajeros/internal/cache"
	"github.com/magabrotheeeer/redcajeros/internal/config"
	"github.com/magabrotheeeer/redcajeros/internal/lib/jwt"
	"github.com/magabrotheeeer/redcajeros/internal/lib/keylock"
	"github.com/magabrotheeeer/redcajeros/internal/lib/paycode"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/rabbitmq"
	"github.com/magabrotheeeer/redcajeros/internal/services/auth"
	"github.com/magabrotheeeer/redcajeros/internal/services/billing"
	"github.com/magabrotheeeer/redcajeros/internal/services/export"
	"github.com/magabrotheeeer/redcajeros/internal/services/ledger"
	"github.com/magabrotheeeer/redcajeros/internal/services/settings"
	"github.com/magabrotheeeer/redcajeros/internal/services/settlement"
)

// Services набор сервисов, которые обслуживают маршруты.
type Services struct {
	Auth       *auth.Service
	Settings   *settings.Service
	Ledger     *ledger.Service
	Settlement *settlement.Service
	Billing    *billing.Service
	Export     *export.Service
}

// NewServices связывает сервисы поверх хранилища, кэша и публикации событий.
func NewServices(cfg *config.Config, repo Repository, store cache.Store, publisher billing.Publisher, logger *slog.Logger) *Services {
	settingsService := settings.New(repo, store, settings.Defaults(cfg), cfg.SettingsTTL, logger)
	locks := keylock.New()
	ledgerService := ledger.New(repo, settingsService, locks, logger)

	return &Services{
		Auth:       auth.New(repo, settingsService, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), logger),
		Settings:   settingsService,
		Ledger:     ledgerService,
		Settlement: settlement.New(repo, settingsService, locks, logger),
		Billing:    billing.New(repo, settingsService, paycode.New(), publisher, locks, cfg.Billing, logger),
		Export:     export.New(ledgerService, logger),
	}
}

// App HTTP-приложение RedCajeros.
type App struct {
	server       *http.Server
	logger       *slog.Logger
	closeStorage func() error
	cache        cache.Store
	conn         *amqp.Connection
	ch           *amqp.Channel
}

// New подключает хранилище, кэш и брокер, создаёт администратора и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	repo, closeStorage, err := OpenStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &App{logger: logger, closeStorage: closeStorage}

	app.cache, err = cache.Open(ctx, cfg.RedisConnection)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	var publisher billing.Publisher = rabbitmq.Discard{}
	if cfg.RabbitMQURL != "" {
		app.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		publisher = rabbitmq.NewPublisher(app.ch)
	} else {
		logger.Warn("rabbitmq url is empty, notifications are disabled")
	}

	services := NewServices(cfg, repo, app.cache, publisher, logger)

	if cfg.AdminPassword != "" {
		if _, err := services.Auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
			app.close()
			return nil, fmt.Errorf("failed to ensure admin: %w", err)
		}
	} else {
		logger.Warn("admin password is empty, admin account is not seeded")
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, services, cfg.RateLimit)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if err := a.closeStorage(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}

// Run обслуживает запросы до отмены ctx и затем мягко останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	}
}
