// Package settlement считает остаток кассира и проводит оплату по непогашенным записям.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/redcajeros/internal/lib/apperr"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/metrics"
	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

// DefaultNote примечание расчёта, если вызывающий его не передал.
const DefaultNote = "Settlement recorded"

// Repository хранилище, через которое проводится расчёт.
type Repository interface {
	GetCashier(ctx context.Context, accountID string, id int64) (*models.Cashier, error)
	ListOutstanding(ctx context.Context, accountID string, cashierID int64, allowDebts bool) ([]models.Charge, error)
	ApplySettlement(ctx context.Context, app models.SettlementApplication) (*models.Settlement, error)
	ListSettlements(ctx context.Context, accountID string, cashierID *int64, limit int) ([]models.Settlement, error)
}

// SettingsProvider источник действующих настроек.
type SettingsProvider interface {
	Current(ctx context.Context) (*models.Settings, error)
}

// Locker сериализует записи одного аккаунта.
type Locker interface {
	Lock(key string) (unlock func())
}

// Service сервис расчётов.
type Service struct {
	repo     Repository
	settings SettingsProvider
	locks    Locker
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт сервис расчётов.
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

func total(charges []models.Charge) decimal.Decimal {
	sum := decimal.Zero
	for _, ch := range charges {
		sum = sum.Add(ch.Amount)
	}
	return sum
}

// Outstanding возвращает текущий непогашенный остаток кассира.
// Остаток всегда вычисляется заново.
func (s *Service) Outstanding(ctx context.Context, accountID string, cashierID int64) (*models.Outstanding, error) {
	const op = "settlement.Outstanding"

	if _, err := s.cashier(ctx, op, accountID, cashierID); err != nil {
		return nil, err
	}
	st, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	charges, err := s.repo.ListOutstanding(ctx, accountID, cashierID, st.AllowDebts)
	if err != nil {
		return nil, internal(op, err)
	}
	return &models.Outstanding{
		CashierID: cashierID,
		Total:     total(charges),
		Count:     len(charges),
	}, nil
}

// allocate выбирает записи, которые будут помечены оплаченными.
// charges упорядочены от старых к новым. Частичная оплата отсекает самые старые
// записи по количеству записей полного остатка, а не по накопленной сумме:
// обе ветки отмечают одинаковый набор.
func allocate(charges []models.Charge, amountPaid, outstanding decimal.Decimal) ([]int64, string) {
	branch := models.BranchFull
	if amountPaid.LessThan(outstanding) {
		branch = models.BranchPartial
	}

	cutoff := len(charges)
	ids := make([]int64, 0, cutoff)
	for _, ch := range charges[:cutoff] {
		ids = append(ids, ch.ID)
	}
	return ids, branch
}

// Record проводит оплату кассира. Чтение остатка, отметка записей, сохранение
// расчёта и записи-следа выполняются под блокировкой аккаунта и в одной транзакции хранилища.
func (s *Service) Record(ctx context.Context, accountID string, req models.SettlementRequest) (*models.SettlementResult, error) {
	const op = "settlement.Record"

	unlock := s.locks.Lock(accountID)
	defer unlock()

	c, err := s.cashier(ctx, op, accountID, req.CashierID)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, apperr.NotFound("cashier not found")
	}

	st, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	charges, err := s.repo.ListOutstanding(ctx, accountID, c.ID, st.AllowDebts)
	if err != nil {
		return nil, internal(op, err)
	}
	if len(charges) == 0 {
		return nil, apperr.Validation("nothing to settle")
	}
	outstanding := total(charges)

	amountPaid := outstanding
	if req.AmountPaid != nil {
		amountPaid = req.AmountPaid.Round(2)
		if !amountPaid.IsPositive() {
			return nil, apperr.Validation("amount paid must be greater than zero")
		}
	}

	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = DefaultNote
	}

	ids, branch := allocate(charges, amountPaid, outstanding)
	now := s.now()
	app := models.SettlementApplication{
		Settlement: models.Settlement{
			AccountID:        accountID,
			CashierID:        c.ID,
			CashierName:      c.Name,
			AmountPaid:       amountPaid,
			OutstandingTotal: outstanding,
			ChargesSettled:   len(ids),
			Note:             note,
			CreatedAt:        now,
		},
		ChargeIDs: ids,
	}
	if !amountPaid.IsZero() {
		app.Trace = &models.Charge{
			AccountID: accountID,
			CashierID: c.ID,
			Platform:  models.TracePlatform,
			Amount:    amountPaid.Neg(),
			Kind:      models.KindPaymentTrace,
			Note:      note,
			Paid:      true,
			IsDebt:    false,
			CreatedAt: now,
		}
	}

	saved, err := s.repo.ApplySettlement(ctx, app)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, apperr.Conflict("outstanding charges changed, retry the settlement")
		}
		return nil, internal(op, err)
	}

	metrics.SettlementsRecorded.WithLabelValues(branch).Inc()
	metrics.ChargesSettled.Add(float64(len(ids)))
	s.log.Info("settlement recorded",
		sl.Account(accountID),
		slog.Int64("cashier_id", c.ID),
		slog.Int64("settlement_id", saved.ID),
		slog.String("branch", branch),
		slog.Int("charges", len(ids)),
	)

	return &models.SettlementResult{
		SettlementID:     saved.ID,
		CashierID:        c.ID,
		CashierName:      c.Name,
		AmountPaid:       amountPaid,
		OutstandingTotal: outstanding,
		Difference:       amountPaid.Sub(outstanding),
		ChargesSettled:   len(ids),
		Branch:           branch,
		Note:             note,
		CreatedAt:        saved.CreatedAt,
	}, nil
}

// List возвращает историю расчётов, новые первыми.
func (s *Service) List(ctx context.Context, accountID string, cashierID *int64, limit int) ([]models.Settlement, error) {
	if cashierID != nil {
		if _, err := s.cashier(ctx, "settlement.List", accountID, *cashierID); err != nil {
			return nil, err
		}
	}
	list, err := s.repo.ListSettlements(ctx, accountID, cashierID, limit)
	if err != nil {
		return nil, internal("settlement.List", err)
	}
	return list, nil
}
