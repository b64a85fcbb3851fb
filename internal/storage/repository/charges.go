package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

const chargeColumns = `c.id, c.account_id, c.cashier_id, k.name, c.platform, c.amount,
	c.kind, c.note, c.paid, c.is_debt, c.created_at`

func scanCharge(row rowScanner) (models.Charge, error) {
	var ch models.Charge
	err := row.Scan(&ch.ID, &ch.AccountID, &ch.CashierID, &ch.CashierName, &ch.Platform,
		&ch.Amount, &ch.Kind, &ch.Note, &ch.Paid, &ch.IsDebt, &ch.CreatedAt)
	return ch, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// CreateCharge сохраняет запись журнала и возвращает её ID.
func (s *Storage) CreateCharge(ctx context.Context, ch models.Charge) (int64, error) {
	const op = "storage.CreateCharge"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int64
	query := `INSERT INTO charges (account_id, cashier_id, platform, amount, kind, note, paid, is_debt, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		ch.AccountID, ch.CashierID, ch.Platform, ch.Amount, ch.Kind, ch.Note,
		ch.Paid, ch.IsDebt, nullTime(nonZeroTime(ch.CreatedAt))).Scan(&newID); err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return 0, mapErr(op, err)
	}
	return newID, nil
}

func nonZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// GetCharge возвращает запись аккаунта.
func (s *Storage) GetCharge(ctx context.Context, accountID string, id int64) (*models.Charge, error) {
	const op = "storage.GetCharge"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + chargeColumns + `
			  FROM charges c JOIN cashiers k ON k.id = c.cashier_id
			  WHERE c.account_id = $1 AND c.id = $2`
	ch, err := scanCharge(s.DB.QueryRowContext(ctx, query, accountID, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &ch, nil
}

// DeleteCharge удаляет неоплаченную обычную запись.
// Оплаченные записи и записи расчётов не удаляются: возвращается ErrConflict.
func (s *Storage) DeleteCharge(ctx context.Context, accountID string, id int64) error {
	const op = "storage.DeleteCharge"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM charges
			  WHERE account_id = $1 AND id = $2 AND paid = FALSE AND kind = 'charge'`
	res, err := s.DB.ExecContext(ctx, query, accountID, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err = s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM charges WHERE account_id = $1 AND id = $2)`,
		accountID, id).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

// ListCharges возвращает записи по фильтру, новые первыми.
func (s *Storage) ListCharges(ctx context.Context, accountID string, f models.ChargeFilter) ([]models.Charge, error) {
	const op = "storage.ListCharges"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + chargeColumns + `
			  FROM charges c JOIN cashiers k ON k.id = c.cashier_id
			  WHERE c.account_id = $1`)
	args := []any{accountID}
	add := func(cond string, v any) {
		args = append(args, v)
		fmt.Fprintf(&sb, " AND "+cond, len(args))
	}
	if f.From != nil {
		add("c.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("c.created_at < $%d", *f.To)
	}
	if f.CashierID != nil {
		add("c.cashier_id = $%d", *f.CashierID)
	}
	if f.Platform != nil {
		add("c.platform = $%d", *f.Platform)
	}
	args = append(args, clampLimit(f.Limit))
	fmt.Fprintf(&sb, " ORDER BY c.created_at DESC, c.id DESC LIMIT $%d", len(args))

	return s.queryCharges(ctx, op, sb.String(), args...)
}

func (s *Storage) queryCharges(ctx context.Context, op, query string, args ...any) ([]models.Charge, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Charge, 0)
	for rows.Next() {
		ch, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, ch)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListOutstanding возвращает непогашенные записи кассира от старых к новым.
// При allowDebts == false учитываются только положительные суммы.
func (s *Storage) ListOutstanding(ctx context.Context, accountID string, cashierID int64, allowDebts bool) ([]models.Charge, error) {
	const op = "storage.ListOutstanding"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + chargeColumns + `
			  FROM charges c JOIN cashiers k ON k.id = c.cashier_id
			  WHERE c.account_id = $1 AND c.cashier_id = $2
			    AND c.paid = FALSE AND c.kind = 'charge'
			    AND ($3 OR c.amount > 0)
			  ORDER BY c.created_at ASC, c.id ASC`
	return s.queryCharges(ctx, op, query, accountID, cashierID, allowDebts)
}

// OutstandingByPlatform агрегирует непогашенные записи аккаунта по кассиру и платформе.
func (s *Storage) OutstandingByPlatform(ctx context.Context, accountID string, allowDebts bool) ([]models.PlatformTotal, error) {
	const op = "storage.OutstandingByPlatform"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT cashier_id, platform, SUM(amount), COUNT(*)
			  FROM charges
			  WHERE account_id = $1 AND paid = FALSE AND kind = 'charge'
			    AND ($2 OR amount > 0)
			  GROUP BY cashier_id, platform
			  ORDER BY cashier_id, platform`
	rows, err := s.DB.QueryContext(ctx, query, accountID, allowDebts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.PlatformTotal, 0)
	for rows.Next() {
		var t models.PlatformTotal
		if err = rows.Scan(&t.CashierID, &t.Platform, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ChargesTotalSince возвращает сумму и количество обычных записей начиная с since.
func (s *Storage) ChargesTotalSince(ctx context.Context, accountID string, since time.Time) (decimal.Decimal, int, error) {
	const op = "storage.ChargesTotalSince"
	select {
	case <-ctx.Done():
		return decimal.Zero, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total decimal.Decimal
	var n int
	query := `SELECT COALESCE(SUM(amount), 0), COUNT(*)
			  FROM charges
			  WHERE account_id = $1 AND kind = 'charge' AND created_at >= $2`
	if err := s.DB.QueryRowContext(ctx, query, accountID, since).Scan(&total, &n); err != nil {
		return decimal.Zero, 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, n, nil
}
