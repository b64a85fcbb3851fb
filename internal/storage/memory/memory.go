// Package memory реализует хранилище RedCajeros в памяти процесса.
//
// Store повторяет поведение PostgreSQL-репозитория: те же ограничения уникальности,
// тот же порядок выборок и атомарное применение расчёта. Используется драйвером
// "memory" для локального запуска и в тестах сервисов.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

// Store хранилище на картах под одним RWMutex.
type Store struct {
	mu sync.RWMutex

	accounts    map[string]models.Account
	cashiers    map[int64]models.Cashier
	charges     map[int64]models.Charge
	settlements map[int64]models.Settlement
	payments    map[int64]models.PaymentRequest
	settings    map[string]string

	lastCashierID    int64
	lastChargeID     int64
	lastSettlementID int64
	lastPaymentID    int64
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		accounts:    make(map[string]models.Account),
		cashiers:    make(map[int64]models.Cashier),
		charges:     make(map[int64]models.Charge),
		settlements: make(map[int64]models.Settlement),
		payments:    make(map[int64]models.PaymentRequest),
		settings:    make(map[string]string),
	}
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

// CreateAccount сохраняет аккаунт. Email уникален без учёта регистра.
func (s *Store) CreateAccount(ctx context.Context, a models.Account) (string, error) {
	const op = "storage.memory.CreateAccount"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrDuplicate)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.accounts[a.ID] = a
	return a.ID, nil
}

// GetAccount возвращает аккаунт по идентификатору.
func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	const op = "storage.memory.GetAccount"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return &a, nil
}

// GetAccountByEmail ищет аккаунт по email без учёта регистра.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.memory.GetAccountByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

// UpdateAccount перезаписывает изменяемые поля аккаунта.
func (s *Store) UpdateAccount(ctx context.Context, a models.Account) error {
	const op = "storage.memory.UpdateAccount"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[a.ID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	existing.Name = a.Name
	existing.Phone = a.Phone
	existing.PasswordHash = a.PasswordHash
	existing.Plan = a.Plan
	existing.ExpiresAt = a.ExpiresAt
	existing.Active = a.Active
	existing.IsAdmin = a.IsAdmin
	s.accounts[a.ID] = existing
	return nil
}

// FindAccountsExpiringBetween возвращает активные аккаунты с окончанием подписки в [from, to).
func (s *Store) FindAccountsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Account, error) {
	const op = "storage.memory.FindAccountsExpiringBetween"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []models.Account
	for _, a := range s.accounts {
		if !a.Active || a.IsAdmin || a.Plan == models.PlanExpired || a.ExpiresAt == nil {
			continue
		}
		if !a.ExpiresAt.Before(from) && a.ExpiresAt.Before(to) {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ExpiresAt.Before(*res[j].ExpiresAt) })
	return res, nil
}

// ExpireAccounts переводит аккаунты с истёкшей подпиской на план expired.
func (s *Store) ExpireAccounts(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.memory.ExpireAccounts"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, a := range s.accounts {
		if a.IsAdmin || a.Plan == models.PlanExpired || a.ExpiresAt == nil || a.ExpiresAt.After(now) {
			continue
		}
		a.Plan = models.PlanExpired
		s.accounts[id] = a
		n++
	}
	return n, nil
}

func (s *Store) cashierNameTaken(accountID, name string, exceptID int64) bool {
	for _, c := range s.cashiers {
		if c.AccountID == accountID && c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// CreateCashier сохраняет кассира. Имя уникально в пределах аккаунта без учёта регистра.
func (s *Store) CreateCashier(ctx context.Context, c models.Cashier) (int64, error) {
	const op = "storage.memory.CreateCashier"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cashierNameTaken(c.AccountID, c.Name, 0) {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrDuplicate)
	}
	s.lastCashierID++
	c.ID = s.lastCashierID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.cashiers[c.ID] = c
	return c.ID, nil
}

// GetCashier возвращает кассира аккаунта.
func (s *Store) GetCashier(ctx context.Context, accountID string, id int64) (*models.Cashier, error) {
	const op = "storage.memory.GetCashier"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cashiers[id]
	if !ok || c.AccountID != accountID {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return &c, nil
}

// ListCashiers возвращает кассиров аккаунта, упорядоченных по имени.
func (s *Store) ListCashiers(ctx context.Context, accountID string, includeInactive bool) ([]models.Cashier, error) {
	const op = "storage.memory.ListCashiers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.Cashier, 0)
	for _, c := range s.cashiers {
		if c.AccountID != accountID || (!includeInactive && !c.Active) {
			continue
		}
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool {
		li, lj := strings.ToLower(res[i].Name), strings.ToLower(res[j].Name)
		if li != lj {
			return li < lj
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

// UpdateCashier меняет имя и признак активности.
func (s *Store) UpdateCashier(ctx context.Context, c models.Cashier) error {
	const op = "storage.memory.UpdateCashier"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cashiers[c.ID]
	if !ok || existing.AccountID != c.AccountID {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if s.cashierNameTaken(c.AccountID, c.Name, c.ID) {
		return fmt.Errorf("%s: %w", op, storage.ErrDuplicate)
	}
	existing.Name = c.Name
	existing.Active = c.Active
	s.cashiers[c.ID] = existing
	return nil
}

// DeleteCashier удаляет кассира без записей.
func (s *Store) DeleteCashier(ctx context.Context, accountID string, id int64) error {
	const op = "storage.memory.DeleteCashier"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cashiers[id]
	if !ok || c.AccountID != accountID {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	for _, ch := range s.charges {
		if ch.CashierID == id {
			return fmt.Errorf("%s: %w", op, storage.ErrConflict)
		}
	}
	delete(s.cashiers, id)
	return nil
}

// CountCharges возвращает количество записей кассира в любом статусе.
func (s *Store) CountCharges(ctx context.Context, accountID string, cashierID int64) (int, error) {
	const op = "storage.memory.CountCharges"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ch := range s.charges {
		if ch.AccountID == accountID && ch.CashierID == cashierID {
			n++
		}
	}
	return n, nil
}
