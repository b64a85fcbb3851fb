package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

// CreateCashier сохраняет кассира. Совпадение имени в пределах аккаунта даёт ErrDuplicate.
func (s *Storage) CreateCashier(ctx context.Context, c models.Cashier) (int64, error) {
	const op = "storage.CreateCashier"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int64
	query := `INSERT INTO cashiers (account_id, name, active)
			  VALUES ($1, $2, $3)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query, c.AccountID, c.Name, c.Active).Scan(&newID); err != nil {
		return 0, mapErr(op, err)
	}
	return newID, nil
}

// GetCashier возвращает кассира аккаунта.
func (s *Storage) GetCashier(ctx context.Context, accountID string, id int64) (*models.Cashier, error) {
	const op = "storage.GetCashier"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, name, active, created_at
			  FROM cashiers
			  WHERE account_id = $1 AND id = $2`
	var c models.Cashier
	if err := s.DB.QueryRowContext(ctx, query, accountID, id).Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Active, &c.CreatedAt); err != nil {
		return nil, mapErr(op, err)
	}
	return &c, nil
}

// ListCashiers возвращает кассиров аккаунта по алфавиту.
func (s *Storage) ListCashiers(ctx context.Context, accountID string, includeInactive bool) ([]models.Cashier, error) {
	const op = "storage.ListCashiers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, name, active, created_at
			  FROM cashiers
			  WHERE account_id = $1 AND ($2 OR active)
			  ORDER BY LOWER(name), id`
	rows, err := s.DB.QueryContext(ctx, query, accountID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Cashier, 0)
	for rows.Next() {
		var c models.Cashier
		if err = rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateCashier меняет имя и признак активности кассира.
func (s *Storage) UpdateCashier(ctx context.Context, c models.Cashier) error {
	const op = "storage.UpdateCashier"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE cashiers SET name = $1, active = $2
			  WHERE account_id = $3 AND id = $4`
	res, err := s.DB.ExecContext(ctx, query, c.Name, c.Active, c.AccountID, c.ID)
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

// DeleteCashier удаляет кассира. Если у кассира есть записи, возвращает ErrConflict.
func (s *Storage) DeleteCashier(ctx context.Context, accountID string, id int64) error {
	const op = "storage.DeleteCashier"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM cashiers WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
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

// CountCharges возвращает количество записей кассира в любом статусе.
func (s *Storage) CountCharges(ctx context.Context, accountID string, cashierID int64) (int, error) {
	const op = "storage.CountCharges"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var n int
	query := `SELECT COUNT(*) FROM charges WHERE account_id = $1 AND cashier_id = $2`
	if err := s.DB.QueryRowContext(ctx, query, accountID, cashierID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
