package redcajeros

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/redcajeros/internal/config"
	"github.com/magabrotheeeer/redcajeros/internal/migrations"
	"github.com/magabrotheeeer/redcajeros/internal/services/auth"
	"github.com/magabrotheeeer/redcajeros/internal/services/billing"
	"github.com/magabrotheeeer/redcajeros/internal/services/ledger"
	"github.com/magabrotheeeer/redcajeros/internal/services/settings"
	"github.com/magabrotheeeer/redcajeros/internal/services/settlement"
	"github.com/magabrotheeeer/redcajeros/internal/storage/memory"
	"github.com/magabrotheeeer/redcajeros/internal/storage/repository"
)

// Repository объединяет всё, что сервисы требуют от хранилища.
// Его реализуют memory.Store и repository.Storage.
type Repository interface {
	auth.AccountRepository
	ledger.Repository
	settlement.Repository
	billing.Repository
	settings.Repository
}

var (
	_ Repository = (*memory.Store)(nil)
	_ Repository = (*repository.Storage)(nil)
)

// OpenStorage открывает хранилище по драйверу из конфига.
// Для PostgreSQL применяются миграции и проверяется схема.
// Возвращаемая функция закрывает соединение.
func OpenStorage(cfg *config.Config, log *slog.Logger) (Repository, func() error, error) {
	const op = "app.OpenStorage"

	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), func() error { return nil }, nil
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := WaitForDB(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, db.Close, nil
}

// WaitForDB ждёт, пока схема станет доступна.
func WaitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for i := 0; i < 10; i++ {
		if err = repository.CheckDatabaseReady(db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}
