package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

const paymentColumns = `p.id, p.account_id, p.code, p.plan, p.amount, p.status, p.requested_at, p.resolved_at, p.notes`

func scanPayment(row rowScanner, extra ...any) (*models.PaymentRequest, error) {
	var p models.PaymentRequest
	var resolvedAt sql.NullTime
	dest := append([]any{&p.ID, &p.AccountID, &p.Code, &p.Plan, &p.Amount, &p.Status,
		&p.RequestedAt, &resolvedAt, &p.Notes}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		p.ResolvedAt = &resolvedAt.Time
	}
	return &p, nil
}

// HasPendingRequest сообщает, есть ли у аккаунта ожидающая заявка.
func (s *Storage) HasPendingRequest(ctx context.Context, accountID string) (bool, error) {
	const op = "storage.HasPendingRequest"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM payment_requests WHERE account_id = $1 AND status = 'pending')`
	if err := s.DB.QueryRowContext(ctx, query, accountID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// PaymentCodeExists сообщает, занят ли код подтверждения.
func (s *Storage) PaymentCodeExists(ctx context.Context, code string) (bool, error) {
	const op = "storage.PaymentCodeExists"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_requests WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CreatePaymentRequest сохраняет заявку. Повтор кода даёт ErrDuplicate.
func (s *Storage) CreatePaymentRequest(ctx context.Context, p models.PaymentRequest) (int64, error) {
	const op = "storage.CreatePaymentRequest"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int64
	query := `INSERT INTO payment_requests (account_id, code, plan, amount, status, notes)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		p.AccountID, p.Code, p.Plan, p.Amount, p.Status, p.Notes).Scan(&newID); err != nil {
		return 0, mapErr(op, err)
	}
	return newID, nil
}

// LatestPendingRequest возвращает последнюю ожидающую заявку аккаунта.
func (s *Storage) LatestPendingRequest(ctx context.Context, accountID string) (*models.PaymentRequest, error) {
	const op = "storage.LatestPendingRequest"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM payment_requests p
			  WHERE p.account_id = $1 AND p.status = 'pending'
			  ORDER BY p.requested_at DESC, p.id DESC
			  LIMIT 1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, accountID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

// ListPendingRequests возвращает очередь ожидающих заявок вместе с данными владельцев.
func (s *Storage) ListPendingRequests(ctx context.Context) ([]models.PendingPayment, error) {
	const op = "storage.ListPendingRequests"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `, a.email, a.name, a.phone
			  FROM payment_requests p JOIN accounts a ON a.id = p.account_id
			  WHERE p.status = 'pending'
			  ORDER BY p.requested_at ASC, p.id ASC`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.PendingPayment, 0)
	for rows.Next() {
		var pp models.PendingPayment
		p, err := scanPayment(rows, &pp.Email, &pp.Name, &pp.Phone)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pp.PaymentRequest = *p
		result = append(result, pp)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// VerifyPaymentRequest подтверждает ожидающую заявку и выставляет аккаунту план и срок.
// Признак active аккаунта не меняется.
// Заявка в любом другом состоянии даёт ErrNotFound.
func (s *Storage) VerifyPaymentRequest(ctx context.Context, code, notes string, resolvedAt, expiresAt time.Time) (*models.PaymentRequest, error) {
	const op = "storage.VerifyPaymentRequest"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	query := `UPDATE payment_requests p
			  SET status = 'verified', resolved_at = $2, notes = $3
			  WHERE p.code = $1 AND p.status = 'pending'
			  RETURNING ` + paymentColumns
	p, err := scanPayment(tx.QueryRowContext(ctx, query, code, resolvedAt, notes))
	if err != nil {
		return nil, mapErr(op, err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE accounts SET plan = $1, expires_at = $2 WHERE id = $3`,
		p.Plan, expiresAt, p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, fmt.Errorf("%s: account %s: %w", op, p.AccountID, storage.ErrNotFound)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// RejectPaymentRequest отклоняет ожидающую заявку. Аккаунт не меняется.
func (s *Storage) RejectPaymentRequest(ctx context.Context, code, reason string, resolvedAt time.Time) (*models.PaymentRequest, error) {
	const op = "storage.RejectPaymentRequest"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payment_requests p
			  SET status = 'rejected', resolved_at = $2, notes = $3
			  WHERE p.code = $1 AND p.status = 'pending'
			  RETURNING ` + paymentColumns
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, code, resolvedAt, reason))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

// BillingStats считает показатели административной панели.
func (s *Storage) BillingStats(ctx context.Context, now, monthStart time.Time) (*models.BillingStats, error) {
	const op = "storage.BillingStats"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	st := &models.BillingStats{}
	accountsQuery := `SELECT
			  COUNT(*),
			  COUNT(*) FILTER (WHERE plan NOT IN ('trial', 'expired') AND (expires_at IS NULL OR expires_at > $1)),
			  COUNT(*) FILTER (WHERE plan = 'trial' AND (expires_at IS NULL OR expires_at > $1)),
			  COUNT(*) FILTER (WHERE plan = 'expired' OR expires_at <= $1)
			  FROM accounts
			  WHERE NOT is_admin`
	if err := s.DB.QueryRowContext(ctx, accountsQuery, now).Scan(
		&st.TotalAccounts, &st.ActiveSubscriptions, &st.Trials, &st.Expired); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	paymentsQuery := `SELECT
			  COUNT(*) FILTER (WHERE status = 'verified' AND resolved_at >= $1),
			  COALESCE(SUM(amount) FILTER (WHERE status = 'verified' AND resolved_at >= $1), 0),
			  COUNT(*) FILTER (WHERE status = 'pending')
			  FROM payment_requests`
	if err := s.DB.QueryRowContext(ctx, paymentsQuery, monthStart).Scan(
		&st.VerifiedThisMonth, &st.RevenueThisMonth, &st.PendingRequests); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}
