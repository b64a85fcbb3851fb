package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/redcajeros/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Summarize строит сводку непогашенных сумм по активным кассирам.
// Платформы берутся из настроек, отсутствующие заполняются нулями.
// Фильтр записей тот же, что у расчёта остатка.
func (s *Service) Summarize(ctx context.Context, accountID string) (*models.Summary, error) {
	const op = "ledger.Summarize"

	st, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	cashiers, err := s.repo.ListCashiers(ctx, accountID, false)
	if err != nil {
		return nil, internal(op, err)
	}
	totals, err := s.repo.OutstandingByPlatform(ctx, accountID, st.AllowDebts)
	if err != nil {
		return nil, internal(op, err)
	}

	byCashier := make(map[int64][]models.PlatformTotal)
	for _, t := range totals {
		byCashier[t.CashierID] = append(byCashier[t.CashierID], t)
	}

	summary := &models.Summary{
		Platforms:  st.Platforms,
		Currency:   st.Currency,
		Lines:      make([]models.SummaryLine, 0, len(cashiers)),
		GrandTotal: decimal.Zero,
	}
	for _, c := range cashiers {
		line := models.SummaryLine{
			CashierID:   c.ID,
			CashierName: c.Name,
			Platforms:   make(map[string]decimal.Decimal, len(st.Platforms)),
			Total:       decimal.Zero,
		}
		for _, p := range st.Platforms {
			line.Platforms[p] = decimal.Zero
		}
		for _, t := range byCashier[c.ID] {
			line.Count += t.Count
			if _, ok := line.Platforms[t.Platform]; ok {
				line.Platforms[t.Platform] = line.Platforms[t.Platform].Add(t.Total)
				line.Total = line.Total.Add(t.Total)
			}
		}
		line.Commission = line.Total.Mul(st.CommissionPercent).Div(hundred).Round(2)
		summary.GrandTotal = summary.GrandTotal.Add(line.Total)
		summary.Lines = append(summary.Lines, line)
	}
	return summary, nil
}

// Stats показатели главной панели на момент now.
func (s *Service) Stats(ctx context.Context, accountID string, now time.Time) (*models.LedgerStats, error) {
	const op = "ledger.Stats"

	summary, err := s.Summarize(ctx, accountID)
	if err != nil {
		return nil, err
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayTotal, todayCount, err := s.repo.ChargesTotalSince(ctx, accountID, dayStart)
	if err != nil {
		return nil, internal(op, err)
	}

	stats := &models.LedgerStats{
		TodayTotal:       todayTotal,
		TodayCount:       todayCount,
		OutstandingTotal: summary.GrandTotal,
		ActiveCashiers:   len(summary.Lines),
	}
	for i := range summary.Lines {
		line := summary.Lines[i]
		if !line.Total.IsPositive() {
			continue
		}
		if stats.TopCashier == nil || line.Total.GreaterThan(stats.TopCashier.Total) {
			stats.TopCashier = &line
		}
	}
	return stats, nil
}
