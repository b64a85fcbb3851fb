package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (s *Store) withCashierName(ch models.Charge) models.Charge {
	if c, ok := s.cashiers[ch.CashierID]; ok {
		ch.CashierName = c.Name
	}
	return ch
}

// CreateCharge сохраняет запись журнала.
func (s *Store) CreateCharge(ctx context.Context, ch models.Charge) (int64, error) {
	const op = "storage.memory.CreateCharge"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cashiers[ch.CashierID]
	if !ok || c.AccountID != ch.AccountID {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	s.lastChargeID++
	ch.ID = s.lastChargeID
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	s.charges[ch.ID] = ch
	return ch.ID, nil
}

// GetCharge возвращает запись аккаунта.
func (s *Store) GetCharge(ctx context.Context, accountID string, id int64) (*models.Charge, error) {
	const op = "storage.memory.GetCharge"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.charges[id]
	if !ok || ch.AccountID != accountID {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	ch = s.withCashierName(ch)
	return &ch, nil
}

// DeleteCharge удаляет неоплаченную обычную запись.
func (s *Store) DeleteCharge(ctx context.Context, accountID string, id int64) error {
	const op = "storage.memory.DeleteCharge"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.charges[id]
	if !ok || ch.AccountID != accountID {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if ch.Paid || ch.Kind != models.KindCharge {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	delete(s.charges, id)
	return nil
}

// ListCharges возвращает записи по фильтру, новые первыми.
func (s *Store) ListCharges(ctx context.Context, accountID string, f models.ChargeFilter) ([]models.Charge, error) {
	const op = "storage.memory.ListCharges"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.Charge, 0)
	for _, ch := range s.charges {
		if ch.AccountID != accountID {
			continue
		}
		if f.From != nil && ch.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !ch.CreatedAt.Before(*f.To) {
			continue
		}
		if f.CashierID != nil && ch.CashierID != *f.CashierID {
			continue
		}
		if f.Platform != nil && ch.Platform != *f.Platform {
			continue
		}
		res = append(res, s.withCashierName(ch))
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID > res[j].ID
	})

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) outstandingLocked(accountID string, cashierID int64, allowDebts bool) []models.Charge {
	res := make([]models.Charge, 0)
	for _, ch := range s.charges {
		if ch.AccountID != accountID || ch.CashierID != cashierID {
			continue
		}
		if ch.Kind != models.KindCharge || ch.Paid {
			continue
		}
		if !allowDebts && !ch.Amount.IsPositive() {
			continue
		}
		res = append(res, s.withCashierName(ch))
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// ListOutstanding возвращает непогашенные записи кассира от старых к новым.
// При allowDebts == false отрицательные записи не учитываются.
func (s *Store) ListOutstanding(ctx context.Context, accountID string, cashierID int64, allowDebts bool) ([]models.Charge, error) {
	const op = "storage.memory.ListOutstanding"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.outstandingLocked(accountID, cashierID, allowDebts), nil
}

// OutstandingByPlatform агрегирует непогашенные записи аккаунта по кассиру и платформе.
func (s *Store) OutstandingByPlatform(ctx context.Context, accountID string, allowDebts bool) ([]models.PlatformTotal, error) {
	const op = "storage.memory.OutstandingByPlatform"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		cashierID int64
		platform  string
	}
	agg := make(map[key]*models.PlatformTotal)
	for _, ch := range s.charges {
		if ch.AccountID != accountID || ch.Kind != models.KindCharge || ch.Paid {
			continue
		}
		if !allowDebts && !ch.Amount.IsPositive() {
			continue
		}
		k := key{ch.CashierID, ch.Platform}
		t, ok := agg[k]
		if !ok {
			t = &models.PlatformTotal{CashierID: ch.CashierID, Platform: ch.Platform, Total: decimal.Zero}
			agg[k] = t
		}
		t.Total = t.Total.Add(ch.Amount)
		t.Count++
	}

	res := make([]models.PlatformTotal, 0, len(agg))
	for _, t := range agg {
		res = append(res, *t)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CashierID != res[j].CashierID {
			return res[i].CashierID < res[j].CashierID
		}
		return res[i].Platform < res[j].Platform
	})
	return res, nil
}

// ChargesTotalSince возвращает сумму и количество обычных записей, созданных не раньше since.
func (s *Store) ChargesTotalSince(ctx context.Context, accountID string, since time.Time) (decimal.Decimal, int, error) {
	const op = "storage.memory.ChargesTotalSince"
	if err := checkCtx(ctx, op); err != nil {
		return decimal.Zero, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	total, n := decimal.Zero, 0
	for _, ch := range s.charges {
		if ch.AccountID != accountID || ch.Kind != models.KindCharge || ch.CreatedAt.Before(since) {
			continue
		}
		total = total.Add(ch.Amount)
		n++
	}
	return total, n, nil
}

// ApplySettlement атомарно помечает записи оплаченными, сохраняет расчёт и запись-след.
// Если хотя бы одна запись уже оплачена или удалена, ничего не меняется и возвращается ErrConflict.
func (s *Store) ApplySettlement(ctx context.Context, app models.SettlementApplication) (*models.Settlement, error) {
	const op = "storage.memory.ApplySettlement"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := app.Settlement
	for _, id := range app.ChargeIDs {
		ch, ok := s.charges[id]
		if !ok || ch.AccountID != st.AccountID || ch.Paid {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
		}
	}

	now := time.Now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	for _, id := range app.ChargeIDs {
		ch := s.charges[id]
		ch.Paid = true
		s.charges[id] = ch
	}

	s.lastSettlementID++
	st.ID = s.lastSettlementID
	s.settlements[st.ID] = st

	if app.Trace != nil {
		tr := *app.Trace
		s.lastChargeID++
		tr.ID = s.lastChargeID
		if tr.CreatedAt.IsZero() {
			tr.CreatedAt = st.CreatedAt
		}
		s.charges[tr.ID] = tr
	}

	if c, ok := s.cashiers[st.CashierID]; ok {
		st.CashierName = c.Name
	}
	return &st, nil
}

// ListSettlements возвращает расчёты аккаунта, новые первыми.
func (s *Store) ListSettlements(ctx context.Context, accountID string, cashierID *int64, limit int) ([]models.Settlement, error) {
	const op = "storage.memory.ListSettlements"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.Settlement, 0)
	for _, st := range s.settlements {
		if st.AccountID != accountID || (cashierID != nil && st.CashierID != *cashierID) {
			continue
		}
		if c, ok := s.cashiers[st.CashierID]; ok {
			st.CashierName = c.Name
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID > res[j].ID
	})
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
