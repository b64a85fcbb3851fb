package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

const accountColumns = `id, email, password_hash, name, phone, plan, expires_at, active, is_admin, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var expiresAt sql.NullTime
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Phone,
		&a.Plan, &expiresAt, &a.Active, &a.IsAdmin, &a.CreatedAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		a.ExpiresAt = &expiresAt.Time
	}
	return &a, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// CreateAccount сохраняет новый аккаунт и возвращает его ID.
func (s *Storage) CreateAccount(ctx context.Context, a models.Account) (string, error) {
	const op = "storage.CreateAccount"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO accounts (email, password_hash, name, phone, plan, expires_at, active, is_admin)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query,
		a.Email, a.PasswordHash, a.Name, a.Phone, a.Plan, nullTime(a.ExpiresAt),
		a.Active, a.IsAdmin).Scan(&newID); err != nil {
		return "", mapErr(op, err)
	}
	return newID, nil
}

// GetAccount возвращает аккаунт по его ID.
func (s *Storage) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	const op = "storage.GetAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return a, nil
}

// GetAccountByEmail возвращает аккаунт по email без учёта регистра.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	a, err := scanAccount(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return a, nil
}

// UpdateAccount обновляет изменяемые поля аккаунта.
func (s *Storage) UpdateAccount(ctx context.Context, a models.Account) error {
	const op = "storage.UpdateAccount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET name = $1, phone = $2, password_hash = $3, plan = $4,
			      expires_at = $5, active = $6, is_admin = $7
			  WHERE id = $8`
	res, err := s.DB.ExecContext(ctx, query, a.Name, a.Phone, a.PasswordHash, a.Plan,
		nullTime(a.ExpiresAt), a.Active, a.IsAdmin, a.ID)
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// FindAccountsExpiringBetween находит активные аккаунты, подписка которых заканчивается в [from, to).
func (s *Storage) FindAccountsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Account, error) {
	const op = "storage.FindAccountsExpiringBetween"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  WHERE active AND NOT is_admin AND plan <> 'expired'
			    AND expires_at >= $1 AND expires_at < $2
			  ORDER BY expires_at`
	rows, err := s.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ExpireAccounts переводит аккаунты с истёкшей подпиской на план expired.
func (s *Storage) ExpireAccounts(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.ExpireAccounts"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET plan = 'expired'
			  WHERE NOT is_admin AND plan <> 'expired'
			    AND expires_at IS NOT NULL AND expires_at <= $1`
	res, err := s.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
