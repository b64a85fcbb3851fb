package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

func seedCashier(t *testing.T, s *Store, accountID, name string) int64 {
	t.Helper()
	id, err := s.CreateCashier(context.Background(), models.Cashier{AccountID: accountID, Name: name, Active: true})
	require.NoError(t, err)
	return id
}

func seedCharge(t *testing.T, s *Store, accountID string, cashierID int64, amount string, at time.Time) int64 {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	id, err := s.CreateCharge(context.Background(), models.Charge{
		AccountID: accountID,
		CashierID: cashierID,
		Platform:  "Zeus",
		Amount:    amt,
		Kind:      models.KindCharge,
		IsDebt:    amt.IsNegative(),
		CreatedAt: at,
	})
	require.NoError(t, err)
	return id
}

func TestStore_Accounts(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.CreateAccount(ctx, models.Account{Email: "Owner@Example.com", Name: "Owner", Plan: models.PlanTrial, Active: true})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = s.CreateAccount(ctx, models.Account{Email: "owner@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	a, err := s.GetAccountByEmail(ctx, "OWNER@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)

	_, err = s.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ExpireAccounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(48 * time.Hour)

	expiredID, err := s.CreateAccount(ctx, models.Account{Email: "a@x.com", Plan: models.PlanBasic, ExpiresAt: &past, Active: true})
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, models.Account{Email: "b@x.com", Plan: models.PlanBasic, ExpiresAt: &future, Active: true})
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, models.Account{Email: "admin@x.com", Plan: models.PlanAdmin, ExpiresAt: &past, IsAdmin: true, Active: true})
	require.NoError(t, err)

	soon, err := s.FindAccountsExpiringBetween(ctx, now, now.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, "b@x.com", soon[0].Email)

	n, err := s.ExpireAccounts(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, err := s.GetAccount(ctx, expiredID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanExpired, a.Plan)
}

func TestStore_CashierNameUniquePerAccount(t *testing.T) {
	ctx := context.Background()
	s := New()

	seedCashier(t, s, "acc-1", "Ana")
	_, err := s.CreateCashier(ctx, models.Cashier{AccountID: "acc-1", Name: "ANA", Active: true})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	_, err = s.CreateCashier(ctx, models.Cashier{AccountID: "acc-2", Name: "Ana", Active: true})
	assert.NoError(t, err)

	_, err = s.GetCashier(ctx, "acc-2", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_DeleteCashierWithCharges(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := seedCashier(t, s, "acc", "Luis")
	seedCharge(t, s, "acc", id, "10", time.Now())

	err := s.DeleteCashier(ctx, "acc", id)
	assert.ErrorIs(t, err, storage.ErrConflict)

	n, err := s.CountCharges(ctx, "acc", id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ListOutstandingOrderAndDebts(t *testing.T) {
	ctx := context.Background()
	s := New()
	cashier := seedCashier(t, s, "acc", "Luis")
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	second := seedCharge(t, s, "acc", cashier, "20", base.Add(time.Minute))
	first := seedCharge(t, s, "acc", cashier, "10", base)
	debt := seedCharge(t, s, "acc", cashier, "-5", base.Add(2*time.Minute))

	withDebts, err := s.ListOutstanding(ctx, "acc", cashier, true)
	require.NoError(t, err)
	require.Len(t, withDebts, 3)
	assert.Equal(t, []int64{first, second, debt}, []int64{withDebts[0].ID, withDebts[1].ID, withDebts[2].ID})

	noDebts, err := s.ListOutstanding(ctx, "acc", cashier, false)
	require.NoError(t, err)
	assert.Len(t, noDebts, 2)
}

func TestStore_ApplySettlement(t *testing.T) {
	ctx := context.Background()
	s := New()
	cashier := seedCashier(t, s, "acc", "Luis")
	c1 := seedCharge(t, s, "acc", cashier, "10", time.Now().Add(-time.Hour))
	c2 := seedCharge(t, s, "acc", cashier, "20", time.Now())

	st, err := s.ApplySettlement(ctx, models.SettlementApplication{
		Settlement: models.Settlement{
			AccountID:        "acc",
			CashierID:        cashier,
			AmountPaid:       decimal.NewFromInt(10),
			OutstandingTotal: decimal.NewFromInt(30),
			ChargesSettled:   1,
		},
		ChargeIDs: []int64{c1},
		Trace: &models.Charge{
			AccountID: "acc",
			CashierID: cashier,
			Platform:  models.TracePlatform,
			Amount:    decimal.NewFromInt(-10),
			Kind:      models.KindPaymentTrace,
			Paid:      true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Luis", st.CashierName)

	out, err := s.ListOutstanding(ctx, "acc", cashier, true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, c2, out[0].ID)

	_, err = s.ApplySettlement(ctx, models.SettlementApplication{
		Settlement: models.Settlement{AccountID: "acc", CashierID: cashier},
		ChargeIDs:  []int64{c1, c2},
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	out, err = s.ListOutstanding(ctx, "acc", cashier, true)
	require.NoError(t, err)
	assert.Len(t, out, 1, "failed settlement must not mark charges")

	all, err := s.ListCharges(ctx, "acc", models.ChargeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	err = s.DeleteCharge(ctx, "acc", c1)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestStore_PaymentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	accID, err := s.CreateAccount(ctx, models.Account{Email: "o@x.com", Name: "O", Plan: models.PlanTrial, Active: true})
	require.NoError(t, err)

	_, err = s.CreatePaymentRequest(ctx, models.PaymentRequest{
		AccountID: accID, Code: "REDCAJ-ABC123", Plan: models.PlanBasic,
		Amount: decimal.RequireFromString("9.99"), Status: models.PaymentPending,
	})
	require.NoError(t, err)

	_, err = s.CreatePaymentRequest(ctx, models.PaymentRequest{AccountID: accID, Code: "REDCAJ-ABC123", Status: models.PaymentPending})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	pending, err := s.HasPendingRequest(ctx, accID)
	require.NoError(t, err)
	assert.True(t, pending)

	queue, err := s.ListPendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "o@x.com", queue[0].Email)

	now := time.Now().UTC()
	expires := now.AddDate(0, 0, 30)
	p, err := s.VerifyPaymentRequest(ctx, "REDCAJ-ABC123", "ok", now, expires)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentVerified, p.Status)

	a, err := s.GetAccount(ctx, accID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanBasic, a.Plan)
	assert.True(t, a.ExpiresAt.Equal(expires))

	_, err = s.VerifyPaymentRequest(ctx, "REDCAJ-ABC123", "", now, expires)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.RejectPaymentRequest(ctx, "REDCAJ-ABC123", "late", now)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	stats, err := s.BillingStats(ctx, now, now.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.VerifiedThisMonth)
	assert.True(t, stats.RevenueThisMonth.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, 1, stats.ActiveSubscriptions)
}

func TestStore_VerifyKeepsDisabledAccountDisabled(t *testing.T) {
	ctx := context.Background()
	s := New()
	accID, err := s.CreateAccount(ctx, models.Account{Email: "off@x.com", Name: "Off", Plan: models.PlanTrial, Active: false})
	require.NoError(t, err)
	_, err = s.CreatePaymentRequest(ctx, models.PaymentRequest{
		AccountID: accID, Code: "REDCAJ-0FF000", Plan: models.PlanBasic,
		Amount: decimal.RequireFromString("9.99"), Status: models.PaymentPending,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = s.VerifyPaymentRequest(ctx, "REDCAJ-0FF000", "ok", now, now.AddDate(0, 0, 30))
	require.NoError(t, err)

	a, err := s.GetAccount(ctx, accID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanBasic, a.Plan)
	assert.False(t, a.Active)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ListCashiers(ctx, "acc", true)
	assert.ErrorIs(t, err, context.Canceled)
}
