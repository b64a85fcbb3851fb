package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

// ApplySettlement в одной транзакции помечает записи оплаченными, сохраняет расчёт
// и, если задана, запись-след. Если обновлено меньше записей, чем ожидалось,
// транзакция откатывается с ErrConflict.
func (s *Storage) ApplySettlement(ctx context.Context, app models.SettlementApplication) (*models.Settlement, error) {
	const op = "storage.ApplySettlement"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	st := app.Settlement
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	if len(app.ChargeIDs) > 0 {
		res, err := tx.ExecContext(ctx, `UPDATE charges SET paid = TRUE
			WHERE account_id = $1 AND cashier_id = $2 AND id = ANY($3) AND paid = FALSE`,
			st.AccountID, st.CashierID, app.ChargeIDs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if n != int64(len(app.ChargeIDs)) {
			return nil, fmt.Errorf("%s: updated %d of %d charges: %w", op, n, len(app.ChargeIDs), storage.ErrConflict)
		}
	}

	query := `INSERT INTO settlements (account_id, cashier_id, amount_paid, outstanding_total, charges_settled, note)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id, created_at`
	if err = tx.QueryRowContext(ctx, query, st.AccountID, st.CashierID, st.AmountPaid,
		st.OutstandingTotal, st.ChargesSettled, st.Note).Scan(&st.ID, &st.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if tr := app.Trace; tr != nil {
		if _, err = tx.ExecContext(ctx, `INSERT INTO charges
			(account_id, cashier_id, platform, amount, kind, note, paid, is_debt, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			tr.AccountID, tr.CashierID, tr.Platform, tr.Amount, tr.Kind, tr.Note,
			tr.Paid, tr.IsDebt, st.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.QueryRowContext(ctx, `SELECT name FROM cashiers WHERE id = $1`, st.CashierID).
		Scan(&st.CashierName); err != nil {
		return nil, mapErr(op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &st, nil
}

// ListSettlements возвращает историю расчётов аккаунта, новые первыми.
func (s *Storage) ListSettlements(ctx context.Context, accountID string, cashierID *int64, limit int) ([]models.Settlement, error) {
	const op = "storage.ListSettlements"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.id, s.account_id, s.cashier_id, k.name, s.amount_paid, s.outstanding_total,
			         s.charges_settled, s.note, s.created_at
			  FROM settlements s JOIN cashiers k ON k.id = s.cashier_id
			  WHERE s.account_id = $1 AND ($2::BIGINT IS NULL OR s.cashier_id = $2)
			  ORDER BY s.created_at DESC, s.id DESC
			  LIMIT $3`
	var cashier any
	if cashierID != nil {
		cashier = *cashierID
	}
	rows, err := s.DB.QueryContext(ctx, query, accountID, cashier, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Settlement, 0)
	for rows.Next() {
		var st models.Settlement
		if err = rows.Scan(&st.ID, &st.AccountID, &st.CashierID, &st.CashierName, &st.AmountPaid,
			&st.OutstandingTotal, &st.ChargesSettled, &st.Note, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
