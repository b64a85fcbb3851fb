// Package ledger ведёт кассиров и журнал записей аккаунта и строит сводки по непогашенным суммам.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/redcajeros/internal/lib/apperr"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/metrics"
	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

const (
	minCashierName   = 2
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Repository хранилище кассиров и записей.
type Repository interface {
	CreateCashier(ctx context.Context, c models.Cashier) (int64, error)
	GetCashier(ctx context.Context, accountID string, id int64) (*models.Cashier, error)
	ListCashiers(ctx context.Context, accountID string, includeInactive bool) ([]models.Cashier, error)
	UpdateCashier(ctx context.Context, c models.Cashier) error
	DeleteCashier(ctx context.Context, accountID string, id int64) error
	CountCharges(ctx context.Context, accountID string, cashierID int64) (int, error)

	CreateCharge(ctx context.Context, ch models.Charge) (int64, error)
	DeleteCharge(ctx context.Context, accountID string, id int64) error
	ListCharges(ctx context.Context, accountID string, f models.ChargeFilter) ([]models.Charge, error)
	OutstandingByPlatform(ctx context.Context, accountID string, allowDebts bool) ([]models.PlatformTotal, error)
	ChargesTotalSince(ctx context.Context, accountID string, since time.Time) (decimal.Decimal, int, error)
}

// SettingsProvider источник действующих настроек.
type SettingsProvider interface {
	Current(ctx context.Context) (*models.Settings, error)
}

// Locker сериализует записи одного аккаунта.
type Locker interface {
	Lock(key string) (unlock func())
}

// Service сервис журнала.
type Service struct {
	repo     Repository
	settings SettingsProvider
	locks    Locker
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт сервис журнала.
func New(repo Repository, settings SettingsProvider, locks Locker, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		settings: settings,
		locks:    locks,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func internal(op string, err error) error {
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}

func cleanCashierName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minCashierName {
		return "", apperr.Validation(fmt.Sprintf("cashier name must be at least %d characters", minCashierName))
	}
	return name, nil
}

func (s *Service) cashier(ctx context.Context, op, accountID string, id int64) (*models.Cashier, error) {
	c, err := s.repo.GetCashier(ctx, accountID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("cashier not found")
		}
		return nil, internal(op, err)
	}
	return c, nil
}

// CreateCashier добавляет кассира. Имя уникально в пределах аккаунта без учёта регистра.
func (s *Service) CreateCashier(ctx context.Context, accountID, name string) (*models.Cashier, error) {
	const op = "ledger.CreateCashier"

	name, err := cleanCashierName(name)
	if err != nil {
		return nil, err
	}

	c := models.Cashier{AccountID: accountID, Name: name, Active: true, CreatedAt: s.now()}
	id, err := s.repo.CreateCashier(ctx, c)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict("cashier with this name already exists")
		}
		return nil, internal(op, err)
	}
	c.ID = id

	s.log.Info("cashier created", sl.Account(accountID), slog.Int64("cashier_id", id))
	return &c, nil
}

// ListCashiers возвращает кассиров аккаунта по алфавиту.
func (s *Service) ListCashiers(ctx context.Context, accountID string, includeInactive bool) ([]models.Cashier, error) {
	cashiers, err := s.repo.ListCashiers(ctx, accountID, includeInactive)
	if err != nil {
		return nil, internal("ledger.ListCashiers", err)
	}
	return cashiers, nil
}

// UpdateCashier переименовывает кассира и/или меняет признак активности.
func (s *Service) UpdateCashier(ctx context.Context, accountID string, id int64, in models.CashierInput) (*models.Cashier, error) {
	const op = "ledger.UpdateCashier"

	name, err := cleanCashierName(in.Name)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	c, err := s.cashier(ctx, op, accountID, id)
	if err != nil {
		return nil, err
	}
	c.Name = name
	if in.Active != nil {
		c.Active = *in.Active
	}

	if err := s.repo.UpdateCashier(ctx, *c); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return nil, apperr.Conflict("cashier with this name already exists")
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperr.NotFound("cashier not found")
		}
		return nil, internal(op, err)
	}
	return c, nil
}

// DeactivateCashier выключает кассира. Записи кассира сохраняются.
func (s *Service) DeactivateCashier(ctx context.Context, accountID string, id int64) (*models.Cashier, error) {
	const op = "ledger.DeactivateCashier"

	unlock := s.locks.Lock(accountID)
	defer unlock()

	c, err := s.cashier(ctx, op, accountID, id)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return c, nil
	}
	c.Active = false
	if err := s.repo.UpdateCashier(ctx, *c); err != nil {
		return nil, internal(op, err)
	}
	s.log.Info("cashier deactivated", sl.Account(accountID), slog.Int64("cashier_id", id))
	return c, nil
}

// DeleteCashier удаляет кассира, у которого нет ни одной записи.
func (s *Service) DeleteCashier(ctx context.Context, accountID string, id int64) error {
	const op = "ledger.DeleteCashier"

	unlock := s.locks.Lock(accountID)
	defer unlock()

	if _, err := s.cashier(ctx, op, accountID, id); err != nil {
		return err
	}
	n, err := s.repo.CountCharges(ctx, accountID, id)
	if err != nil {
		return internal(op, err)
	}
	if n > 0 {
		return apperr.Conflict("cashier has charges, deactivate it instead")
	}

	if err := s.repo.DeleteCashier(ctx, accountID, id); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return apperr.NotFound("cashier not found")
		case errors.Is(err, storage.ErrConflict):
			return apperr.Conflict("cashier has charges, deactivate it instead")
		}
		return internal(op, err)
	}
	s.log.Info("cashier deleted", sl.Account(accountID), slog.Int64("cashier_id", id))
	return nil
}

// CreateCharge записывает сумму на кассира. Отрицательная сумма фиксируется как долг.
func (s *Service) CreateCharge(ctx context.Context, accountID string, in models.ChargeInput) (*models.Charge, error) {
	const op = "ledger.CreateCharge"

	st, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	platform := strings.TrimSpace(in.Platform)
	if !st.HasPlatform(platform) {
		return nil, apperr.Validation(fmt.Sprintf("unknown platform %q", platform))
	}
	amount := in.Amount.Round(2)
	if amount.IsZero() {
		return nil, apperr.Validation("amount must not be zero")
	}
	if amount.Abs().GreaterThan(st.MaxChargeAmount) {
		return nil, apperr.Validation(fmt.Sprintf("amount must not exceed %s", st.MaxChargeAmount.StringFixed(2)))
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	c, err := s.cashier(ctx, op, accountID, in.CashierID)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, apperr.NotFound("cashier not found")
	}

	ch := models.Charge{
		AccountID:   accountID,
		CashierID:   c.ID,
		CashierName: c.Name,
		Platform:    platform,
		Amount:      amount,
		Kind:        models.KindCharge,
		Note:        strings.TrimSpace(in.Note),
		IsDebt:      amount.IsNegative(),
		CreatedAt:   s.now(),
	}
	id, err := s.repo.CreateCharge(ctx, ch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("cashier not found")
		}
		return nil, internal(op, err)
	}
	ch.ID = id

	metrics.ChargesCreated.WithLabelValues(metrics.ChargeType(ch.IsDebt)).Inc()
	s.log.Debug("charge created", sl.Account(accountID), slog.Int64("charge_id", id),
		slog.String("amount", amount.String()))
	return &ch, nil
}

// DeleteCharge удаляет неоплаченную запись.
func (s *Service) DeleteCharge(ctx context.Context, accountID string, id int64) error {
	const op = "ledger.DeleteCharge"

	unlock := s.locks.Lock(accountID)
	defer unlock()

	if err := s.repo.DeleteCharge(ctx, accountID, id); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return apperr.NotFound("charge not found")
		case errors.Is(err, storage.ErrConflict):
			return apperr.Conflict("only unpaid charges can be deleted")
		}
		return internal(op, err)
	}
	return nil
}

// ListCharges возвращает записи журнала по фильтру, новые первыми.
func (s *Service) ListCharges(ctx context.Context, accountID string, f models.ChargeFilter) ([]models.Charge, error) {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, apperr.Validation("from must not be after to")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	charges, err := s.repo.ListCharges(ctx, accountID, f)
	if err != nil {
		return nil, internal("ledger.ListCharges", err)
	}
	return charges, nil
}
