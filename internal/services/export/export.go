// Package export выгружает журнал и сводку аккаунта в CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// LedgerReader операции чтения журнала, через которые строится выгрузка.
type LedgerReader interface {
	ListCharges(ctx context.Context, accountID string, f models.ChargeFilter) ([]models.Charge, error)
	Summarize(ctx context.Context, accountID string) (*models.Summary, error)
}

// Service сервис выгрузки.
type Service struct {
	ledger LedgerReader
	log    *slog.Logger
}

// New создаёт сервис выгрузки.
func New(ledger LedgerReader, log *slog.Logger) *Service {
	return &Service{ledger: ledger, log: log}
}

var chargesHeader = []string{"id", "created_at", "cashier", "platform", "amount", "kind", "paid", "is_debt", "note"}

// Charges пишет в w записи журнала по фильтру, новые первыми.
func (s *Service) Charges(ctx context.Context, accountID string, f models.ChargeFilter, w io.Writer) error {
	const op = "export.Charges"

	charges, err := s.ledger.ListCharges(ctx, accountID, f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(chargesHeader); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, ch := range charges {
		record := []string{
			strconv.FormatInt(ch.ID, 10),
			ch.CreatedAt.UTC().Format(time.RFC3339),
			ch.CashierName,
			ch.Platform,
			ch.Amount.StringFixed(2),
			ch.Kind,
			strconv.FormatBool(ch.Paid),
			strconv.FormatBool(ch.IsDebt),
			ch.Note,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug("charges exported", sl.Account(accountID), slog.Int("rows", len(charges)))
	return nil
}

// Summary пишет в w сводку непогашенных сумм: строка на кассира
// с колонкой на каждую платформу и итоговая строка TOTAL.
func (s *Service) Summary(ctx context.Context, accountID string, w io.Writer) error {
	const op = "export.Summary"

	summary, err := s.ledger.Summarize(ctx, accountID)
	if err != nil {
		return err
	}

	header := make([]string, 0, len(summary.Platforms)+4)
	header = append(header, "cashier")
	header = append(header, summary.Platforms...)
	header = append(header, "total", "count", "commission")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	platformTotals := make(map[string]decimal.Decimal, len(summary.Platforms))
	commission, count := decimal.Zero, 0
	for _, line := range summary.Lines {
		record := make([]string, 0, len(header))
		record = append(record, line.CashierName)
		for _, p := range summary.Platforms {
			v := line.Platforms[p]
			platformTotals[p] = platformTotals[p].Add(v)
			record = append(record, v.StringFixed(2))
		}
		record = append(record, line.Total.StringFixed(2), strconv.Itoa(line.Count), line.Commission.StringFixed(2))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		commission = commission.Add(line.Commission)
		count += line.Count
	}

	footer := make([]string, 0, len(header))
	footer = append(footer, "TOTAL")
	for _, p := range summary.Platforms {
		footer = append(footer, platformTotals[p].StringFixed(2))
	}
	footer = append(footer, summary.GrandTotal.StringFixed(2), strconv.Itoa(count), commission.StringFixed(2))
	if err := cw.Write(footer); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
