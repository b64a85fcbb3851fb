package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/redcajeros/internal/lib/apperr"
	"github.com/magabrotheeeer/redcajeros/internal/lib/keylock"
	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
	"github.com/magabrotheeeer/redcajeros/internal/storage/memory"
)

const accountID = "acc-1"

var fixedNow = time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSettings struct {
	settings models.Settings
}

func (p *staticSettings) Current(context.Context) (*models.Settings, error) {
	st := p.settings
	return &st, nil
}

func defaultSettings() *staticSettings {
	return &staticSettings{settings: models.Settings{
		CommissionPercent: decimal.NewFromInt(10),
		Currency:          "ARS",
		Platforms:         []string{"Zeus", "Ganamos", "Bet30"},
		AllowDebts:        true,
		MaxChargeAmount:   decimal.NewFromInt(1000000),
	}}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T, settings *staticSettings) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, settings, keylock.New(), newNoopLogger()).WithClock(func() time.Time { return fixedNow })
	return svc, store
}

func TestCreateCashier(t *testing.T) {
	svc, _ := newService(t, defaultSettings())
	ctx := context.Background()

	c, err := svc.CreateCashier(ctx, accountID, "  Ana  ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.True(t, c.Active)
	assert.NotZero(t, c.ID)

	tests := []struct {
		name      string
		accountID string
		cashier   string
		wantKind  apperr.Kind
		wantErr   bool
	}{
		{name: "same name different case", accountID: accountID, cashier: "ana", wantErr: true, wantKind: apperr.KindConflict},
		{name: "too short", accountID: accountID, cashier: " A ", wantErr: true, wantKind: apperr.KindValidation},
		{name: "two runes", accountID: accountID, cashier: "Ñu"},
		{name: "same name other account", accountID: "acc-2", cashier: "ana"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCashier(ctx, tt.accountID, tt.cashier)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUpdateAndDeactivateCashier(t *testing.T) {
	svc, _ := newService(t, defaultSettings())
	ctx := context.Background()

	ana, err := svc.CreateCashier(ctx, accountID, "Ana")
	require.NoError(t, err)
	luis, err := svc.CreateCashier(ctx, accountID, "Luis")
	require.NoError(t, err)

	_, err = svc.UpdateCashier(ctx, accountID, luis.ID, models.CashierInput{Name: "ANA"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	inactive := false
	updated, err := svc.UpdateCashier(ctx, accountID, ana.ID, models.CashierInput{Name: "Ana Maria", Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", updated.Name)
	assert.False(t, updated.Active)

	_, err = svc.UpdateCashier(ctx, "acc-2", ana.ID, models.CashierInput{Name: "Other"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	deactivated, err := svc.DeactivateCashier(ctx, accountID, luis.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	active, err := svc.ListCashiers(ctx, accountID, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListCashiers(ctx, accountID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ana Maria", all[0].Name)
}

func TestDeleteCashier(t *testing.T) {
	svc, _ := newService(t, defaultSettings())
	ctx := context.Background()

	empty, err := svc.CreateCashier(ctx, accountID, "Vacio")
	require.NoError(t, err)
	busy, err := svc.CreateCashier(ctx, accountID, "Ocupado")
	require.NoError(t, err)
	_, err = svc.CreateCharge(ctx, accountID, models.ChargeInput{CashierID: busy.ID, Platform: "Zeus", Amount: d("10")})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCashier(ctx, accountID, empty.ID))

	err = svc.DeleteCashier(ctx, accountID, busy.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = svc.DeleteCashier(ctx, accountID, empty.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateCharge(t *testing.T) {
	settings := defaultSettings()
	settings.settings.MaxChargeAmount = d("500")
	svc, store := newService(t, settings)
	ctx := context.Background()

	ana, err := svc.CreateCashier(ctx, accountID, "Ana")
	require.NoError(t, err)
	off, err := svc.CreateCashier(ctx, accountID, "Apagado")
	require.NoError(t, err)
	_, err = svc.DeactivateCashier(ctx, accountID, off.ID)
	require.NoError(t, err)
	foreignID, err := store.CreateCashier(ctx, models.Cashier{AccountID: "acc-2", Name: "Ajeno", Active: true})
	require.NoError(t, err)

	tests := []struct {
		name      string
		input     models.ChargeInput
		wantErr   bool
		wantKind  apperr.Kind
		wantDebt  bool
		wantTotal string
	}{
		{
			name:      "positive amount",
			input:     models.ChargeInput{CashierID: ana.ID, Platform: "Zeus", Amount: d("100.005"), Note: " turno "},
			wantTotal: "100.01",
		},
		{
			name:      "negative amount is debt",
			input:     models.ChargeInput{CashierID: ana.ID, Platform: "Bet30", Amount: d("-20")},
			wantDebt:  true,
			wantTotal: "-20",
		},
		{
			name:     "zero amount",
			input:    models.ChargeInput{CashierID: ana.ID, Platform: "Zeus", Amount: decimal.Zero},
			wantErr:  true,
			wantKind: apperr.KindValidation,
		},
		{
			name:     "rounds to zero",
			input:    models.ChargeInput{CashierID: ana.ID, Platform: "Zeus", Amount: d("0.004")},
			wantErr:  true,
			wantKind: apperr.KindValidation,
		},
		{
			name:     "unknown platform",
			input:    models.ChargeInput{CashierID: ana.ID, Platform: "Casino", Amount: d("10")},
			wantErr:  true,
			wantKind: apperr.KindValidation,
		},
		{
			name:     "above maximum",
			input:    models.ChargeInput{CashierID: ana.ID, Platform: "Zeus", Amount: d("-500.01")},
			wantErr:  true,
			wantKind: apperr.KindValidation,
		},
		{
			name:     "inactive cashier",
			input:    models.ChargeInput{CashierID: off.ID, Platform: "Zeus", Amount: d("10")},
			wantErr:  true,
			wantKind: apperr.KindNotFound,
		},
		{
			name:     "cashier of another account",
			input:    models.ChargeInput{CashierID: foreignID, Platform: "Zeus", Amount: d("10")},
			wantErr:  true,
			wantKind: apperr.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := svc.CreateCharge(ctx, accountID, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, ch.Amount.Equal(d(tt.wantTotal)), "got %s", ch.Amount)
			assert.Equal(t, tt.wantDebt, ch.IsDebt)
			assert.Equal(t, models.KindCharge, ch.Kind)
			assert.False(t, ch.Paid)
			assert.Equal(t, fixedNow, ch.CreatedAt)

			stored, err := store.GetCharge(ctx, accountID, ch.ID)
			require.NoError(t, err)
			assert.Equal(t, "Ana", stored.CashierName)
		})
	}
}

func TestDeleteCharge(t *testing.T) {
	svc, store := newService(t, defaultSettings())
	ctx := context.Background()

	ana, err := svc.CreateCashier(ctx, accountID, "Ana")
	require.NoError(t, err)
	unpaid, err := svc.CreateCharge(ctx, accountID, models.ChargeInput{CashierID: ana.ID, Platform: "Zeus", Amount: d("10")})
	require.NoError(t, err)
	paid, err := svc.CreateCharge(ctx, accountID, models.ChargeInput{CashierID: ana.ID, Platform: "Zeus", Amount: d("20")})
	require.NoError(t, err)
	_, err = store.ApplySettlement(ctx, models.SettlementApplication{
		Settlement: models.Settlement{AccountID: accountID, CashierID: ana.ID, AmountPaid: d("20"), OutstandingTotal: d("20"), ChargesSettled: 1},
		ChargeIDs:  []int64{paid.ID},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCharge(ctx, accountID, unpaid.ID))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(svc.DeleteCharge(ctx, accountID, paid.ID)))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(svc.DeleteCharge(ctx, accountID, unpaid.ID)))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(svc.DeleteCharge(ctx, "acc-2", paid.ID)))
}

func TestListCharges(t *testing.T) {
	svc, _ := newService(t, defaultSettings())
	ctx := context.Background()

	ana, err := svc.CreateCashier(ctx, accountID, "Ana")
	require.NoError(t, err)
	for _, amount := range []string{"1", "2", "3"} {
		_, err := svc.CreateCharge(ctx, accountID, models.ChargeInput{CashierID: ana.ID, Platform: "Zeus", Amount: d(amount)})
		require.NoError(t, err)
	}

	list, err := svc.ListCharges(ctx, accountID, models.ChargeFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].ID > list[1].ID)

	from := fixedNow.Add(time.Hour)
	to := fixedNow
	_, err = svc.ListCharges(ctx, accountID, models.ChargeFilter{From: &from, To: &to})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSummarize(t *testing.T) {
	settings := defaultSettings()
	svc, _ := newService(t, settings)
	ctx := context.Background()

	maria, err := svc.CreateCashier(ctx, accountID, "Maria")
	require.NoError(t, err)
	luis, err := svc.CreateCashier(ctx, accountID, "Luis")
	require.NoError(t, err)
	for _, in := range []models.ChargeInput{
		{CashierID: maria.ID, Platform: "Zeus", Amount: d("100")},
		{CashierID: maria.ID, Platform: "Zeus", Amount: d("50")},
		{CashierID: maria.ID, Platform: "Ganamos", Amount: d("-20")},
		{CashierID: luis.ID, Platform: "Bet30", Amount: d("33.33")},
	} {
		_, err := svc.CreateCharge(ctx, accountID, in)
		require.NoError(t, err)
	}

	summary, err := svc.Summarize(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zeus", "Ganamos", "Bet30"}, summary.Platforms)
	assert.Equal(t, "ARS", summary.Currency)
	require.Len(t, summary.Lines, 2)

	lines := map[string]models.SummaryLine{}
	for _, l := range summary.Lines {
		lines[l.CashierName] = l
		assert.Len(t, l.Platforms, 3)
	}

	m := lines["Maria"]
	assert.True(t, m.Platforms["Zeus"].Equal(d("150")))
	assert.True(t, m.Platforms["Ganamos"].Equal(d("-20")))
	assert.True(t, m.Platforms["Bet30"].IsZero())
	assert.True(t, m.Total.Equal(d("130")))
	assert.Equal(t, 3, m.Count)
	assert.True(t, m.Commission.Equal(d("13")))

	l := lines["Luis"]
	assert.True(t, l.Commission.Equal(d("3.33")))
	assert.True(t, summary.GrandTotal.Equal(d("163.33")))

	settings.settings.AllowDebts = false
	summary, err = svc.Summarize(ctx, accountID)
	require.NoError(t, err)
	for _, line := range summary.Lines {
		if line.CashierName == "Maria" {
			assert.True(t, line.Total.Equal(d("150")))
			assert.Equal(t, 2, line.Count)
		}
	}
}

func TestSummarize_RemovedPlatformCountsButNotTotals(t *testing.T) {
	settings := defaultSettings()
	svc, _ := newService(t, settings)
	ctx := context.Background()

	ana, err := svc.CreateCashier(ctx, accountID, "Ana")
	require.NoError(t, err)
	_, err = svc.CreateCharge(ctx, accountID, models.ChargeInput{CashierID: ana.ID, Platform: "Bet30", Amount: d("40")})
	require.NoError(t, err)
	_, err = svc.CreateCharge(ctx, accountID, models.ChargeInput{CashierID: ana.ID, Platform: "Zeus", Amount: d("10")})
	require.NoError(t, err)

	settings.settings.Platforms = []string{"Zeus"}
	summary, err := svc.Summarize(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, summary.Lines, 1)
	assert.True(t, summary.Lines[0].Total.Equal(d("10")))
	assert.Equal(t, 2, summary.Lines[0].Count)
}

func TestStats(t *testing.T) {
	svc, store := newService(t, defaultSettings())
	ctx := context.Background()

	maria, err := svc.CreateCashier(ctx, accountID, "Maria")
	require.NoError(t, err)
	luis, err := svc.CreateCashier(ctx, accountID, "Luis")
	require.NoError(t, err)

	_, err = store.CreateCharge(ctx, models.Charge{
		AccountID: accountID, CashierID: luis.ID, Platform: "Zeus", Amount: d("500"),
		Kind: models.KindCharge, CreatedAt: fixedNow.AddDate(0, 0, -1),
	})
	require.NoError(t, err)
	_, err = svc.CreateCharge(ctx, accountID, models.ChargeInput{CashierID: maria.ID, Platform: "Zeus", Amount: d("100")})
	require.NoError(t, err)
	_, err = svc.CreateCharge(ctx, accountID, models.ChargeInput{CashierID: maria.ID, Platform: "Zeus", Amount: d("-30")})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, accountID, fixedNow)
	require.NoError(t, err)
	assert.True(t, stats.TodayTotal.Equal(d("70")))
	assert.Equal(t, 2, stats.TodayCount)
	assert.True(t, stats.OutstandingTotal.Equal(d("570")))
	assert.Equal(t, 2, stats.ActiveCashiers)
	require.NotNil(t, stats.TopCashier)
	assert.Equal(t, "Luis", stats.TopCashier.CashierName)
}

func TestStats_NoPositiveTotals(t *testing.T) {
	svc, _ := newService(t, defaultSettings())

	stats, err := svc.Stats(context.Background(), accountID, fixedNow)
	require.NoError(t, err)
	assert.Nil(t, stats.TopCashier)
	assert.True(t, stats.OutstandingTotal.IsZero())
}

type RepoMock struct {
	mock.Mock
	Repository
}

func (m *RepoMock) GetCashier(ctx context.Context, accountID string, id int64) (*models.Cashier, error) {
	args := m.Called(ctx, accountID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cashier), args.Error(1)
}

func (m *RepoMock) CreateCharge(ctx context.Context, ch models.Charge) (int64, error) {
	args := m.Called(ctx, ch)
	return args.Get(0).(int64), args.Error(1)
}

func TestCreateCharge_StorageFailure(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetCashier", mock.Anything, accountID, int64(3)).
		Return(&models.Cashier{ID: 3, AccountID: accountID, Name: "Ana", Active: true}, nil).Once()
	repo.On("CreateCharge", mock.Anything, mock.AnythingOfType("models.Charge")).
		Return(int64(0), errors.New("connection reset")).Once()

	svc := New(repo, defaultSettings(), keylock.New(), newNoopLogger())
	_, err := svc.CreateCharge(context.Background(), accountID, models.ChargeInput{CashierID: 3, Platform: "Zeus", Amount: d("5")})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "internal error", apperr.Message(err))
	repo.AssertExpectations(t)
}

func TestCreateCharge_CashierVanished(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetCashier", mock.Anything, accountID, int64(3)).
		Return(&models.Cashier{ID: 3, AccountID: accountID, Name: "Ana", Active: true}, nil).Once()
	repo.On("CreateCharge", mock.Anything, mock.Anything).
		Return(int64(0), storage.ErrNotFound).Once()

	svc := New(repo, defaultSettings(), keylock.New(), newNoopLogger())
	_, err := svc.CreateCharge(context.Background(), accountID, models.ChargeInput{CashierID: 3, Platform: "Zeus", Amount: d("5")})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCashierChangesWaitForAccountLock(t *testing.T) {
	ctx := context.Background()
	inactive := false

	tests := []struct {
		name   string
		change func(svc *Service, id int64) error
	}{
		{
			name: "deactivate",
			change: func(svc *Service, id int64) error {
				_, err := svc.DeactivateCashier(ctx, accountID, id)
				return err
			},
		},
		{
			name: "update",
			change: func(svc *Service, id int64) error {
				_, err := svc.UpdateCashier(ctx, accountID, id, models.CashierInput{Name: "Ana", Active: &inactive})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			locks := keylock.New()
			svc := New(store, defaultSettings(), locks, newNoopLogger())

			c, err := svc.CreateCashier(ctx, accountID, "Ana")
			require.NoError(t, err)

			unlock := locks.Lock(accountID)
			done := make(chan error, 1)
			go func() { done <- tt.change(svc, c.ID) }()

			select {
			case err := <-done:
				unlock()
				t.Fatalf("cashier changed while the account was locked: %v", err)
			case <-time.After(50 * time.Millisecond):
			}
			held, err := store.GetCashier(ctx, accountID, c.ID)
			require.NoError(t, err)
			assert.True(t, held.Active)

			unlock()
			require.NoError(t, <-done)
			after, err := store.GetCashier(ctx, accountID, c.ID)
			require.NoError(t, err)
			assert.False(t, after.Active)
		})
	}
}
