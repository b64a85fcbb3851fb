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

// HasPendingRequest сообщает, есть ли у аккаунта заявка в состоянии pending.
func (s *Store) HasPendingRequest(ctx context.Context, accountID string) (bool, error) {
	const op = "storage.memory.HasPendingRequest"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.AccountID == accountID && p.Status == models.PaymentPending {
			return true, nil
		}
	}
	return false, nil
}

// PaymentCodeExists сообщает, занят ли код подтверждения.
func (s *Store) PaymentCodeExists(ctx context.Context, code string) (bool, error) {
	const op = "storage.memory.PaymentCodeExists"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.Code == code {
			return true, nil
		}
	}
	return false, nil
}

// CreatePaymentRequest сохраняет заявку. Код уникален.
func (s *Store) CreatePaymentRequest(ctx context.Context, p models.PaymentRequest) (int64, error) {
	const op = "storage.memory.CreatePaymentRequest"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if existing.Code == p.Code {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrDuplicate)
		}
	}
	s.lastPaymentID++
	p.ID = s.lastPaymentID
	if p.RequestedAt.IsZero() {
		p.RequestedAt = time.Now().UTC()
	}
	s.payments[p.ID] = p
	return p.ID, nil
}

// LatestPendingRequest возвращает последнюю ожидающую заявку аккаунта.
func (s *Store) LatestPendingRequest(ctx context.Context, accountID string) (*models.PaymentRequest, error) {
	const op = "storage.memory.LatestPendingRequest"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.PaymentRequest
	for _, p := range s.payments {
		if p.AccountID != accountID || p.Status != models.PaymentPending {
			continue
		}
		if latest == nil || p.RequestedAt.After(latest.RequestedAt) ||
			(p.RequestedAt.Equal(latest.RequestedAt) && p.ID > latest.ID) {
			cp := p
			latest = &cp
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return latest, nil
}

// ListPendingRequests возвращает очередь ожидающих заявок, старые первыми.
func (s *Store) ListPendingRequests(ctx context.Context) ([]models.PendingPayment, error) {
	const op = "storage.memory.ListPendingRequests"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.PendingPayment, 0)
	for _, p := range s.payments {
		if p.Status != models.PaymentPending {
			continue
		}
		a := s.accounts[p.AccountID]
		res = append(res, models.PendingPayment{PaymentRequest: p, Email: a.Email, Name: a.Name, Phone: a.Phone})
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].RequestedAt.Equal(res[j].RequestedAt) {
			return res[i].RequestedAt.Before(res[j].RequestedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (s *Store) pendingByCodeLocked(code string) (models.PaymentRequest, bool) {
	for _, p := range s.payments {
		if p.Code == code && p.Status == models.PaymentPending {
			return p, true
		}
	}
	return models.PaymentRequest{}, false
}

// VerifyPaymentRequest подтверждает ожидающую заявку и продлевает подписку аккаунта.
func (s *Store) VerifyPaymentRequest(ctx context.Context, code, notes string, resolvedAt, expiresAt time.Time) (*models.PaymentRequest, error) {
	const op = "storage.memory.VerifyPaymentRequest"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pendingByCodeLocked(code)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	a, ok := s.accounts[p.AccountID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	p.Status = models.PaymentVerified
	p.ResolvedAt = &resolvedAt
	p.Notes = notes
	s.payments[p.ID] = p

	a.Plan = p.Plan
	a.ExpiresAt = &expiresAt
	s.accounts[a.ID] = a
	return &p, nil
}

// RejectPaymentRequest отклоняет ожидающую заявку.
func (s *Store) RejectPaymentRequest(ctx context.Context, code, reason string, resolvedAt time.Time) (*models.PaymentRequest, error) {
	const op = "storage.memory.RejectPaymentRequest"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pendingByCodeLocked(code)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	p.Status = models.PaymentRejected
	p.ResolvedAt = &resolvedAt
	p.Notes = reason
	s.payments[p.ID] = p
	return &p, nil
}

// BillingStats считает показатели административной панели.
func (s *Store) BillingStats(ctx context.Context, now, monthStart time.Time) (*models.BillingStats, error) {
	const op = "storage.memory.BillingStats"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &models.BillingStats{RevenueThisMonth: decimal.Zero}
	for _, a := range s.accounts {
		if a.IsAdmin {
			continue
		}
		st.TotalAccounts++
		switch {
		case a.Plan == models.PlanExpired || (a.ExpiresAt != nil && !a.ExpiresAt.After(now)):
			st.Expired++
		case a.Plan == models.PlanTrial:
			st.Trials++
		default:
			st.ActiveSubscriptions++
		}
	}
	for _, p := range s.payments {
		switch p.Status {
		case models.PaymentPending:
			st.PendingRequests++
		case models.PaymentVerified:
			if p.ResolvedAt != nil && !p.ResolvedAt.Before(monthStart) {
				st.VerifiedThisMonth++
				st.RevenueThisMonth = st.RevenueThisMonth.Add(p.Amount)
			}
		}
	}
	return st, nil
}

// ListSettings возвращает все сохранённые настройки.
func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	const op = "storage.memory.ListSettings"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		res[k] = v
	}
	return res, nil
}

// UpsertSettings записывает значения настроек одной операцией.
func (s *Store) UpsertSettings(ctx context.Context, values map[string]string) error {
	const op = "storage.memory.UpsertSettings"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.settings[k] = v
	}
	return nil
}
