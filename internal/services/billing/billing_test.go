package billing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/redcajeros/internal/config"
	"github.com/magabrotheeeer/redcajeros/internal/lib/apperr"
	"github.com/magabrotheeeer/redcajeros/internal/lib/keylock"
	"github.com/magabrotheeeer/redcajeros/internal/lib/paycode"
	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/rabbitmq"
	"github.com/magabrotheeeer/redcajeros/internal/storage/memory"
)

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

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
		Currency:             "$",
		PriceBasic:           decimal.RequireFromString("9.99"),
		PricePremium:         decimal.RequireFromString("19.99"),
		SinglePendingRequest: true,
		AdminWhatsApp:        "+58 412-123-4567",
		BankAccount:          "0102-0000-00-0000000000",
		BankName:             "Banco de Venezuela",
		AccountHolder:        "Carlos",
	}}
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	args := m.Called(ctx, routingKey, message)
	return args.Error(0)
}

// sequence выдаёт заранее заданные коды по очереди.
type sequence struct {
	codes []string
}

func (s *sequence) Generate() (string, error) {
	if len(s.codes) == 0 {
		return "", errors.New("sequence exhausted")
	}
	c := s.codes[0]
	s.codes = s.codes[1:]
	return c, nil
}

var billingCfg = config.Billing{RenewalDays: 30, CodeAttempts: 3}

type fixture struct {
	store     *memory.Store
	publisher *PublisherMock
	settings  *staticSettings
	svc       *Service
	accountID string
}

func newFixture(t *testing.T, codes CodeGenerator, account models.Account) *fixture {
	t.Helper()
	store := memory.New()
	if account.Email == "" {
		account.Email = "owner@example.com"
	}
	if account.Name == "" {
		account.Name = "Maria"
	}
	if account.Plan == "" {
		account.Plan = models.PlanTrial
	}
	account.Active = true
	id, err := store.CreateAccount(context.Background(), account)
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		publisher: new(PublisherMock),
		settings:  defaultSettings(),
		accountID: id,
	}
	f.svc = New(store, f.settings, codes, f.publisher, keylock.New(), billingCfg, newNoopLogger()).
		WithClock(func() time.Time { return fixedNow })
	return f
}

func TestRequestPayment(t *testing.T) {
	f := newFixture(t, paycode.NewWithReader(bytes.NewReader([]byte{0x3f, 0xa0, 0x9c})), models.Account{})
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingPaymentRequested, mock.MatchedBy(func(e models.PaymentEvent) bool {
		return e.Code == "REDCAJ-3FA09C" && e.Email == "owner@example.com" && e.Status == models.PaymentPending
	})).Return(nil).Once()

	instr, err := f.svc.RequestPayment(context.Background(), f.accountID, " Basic ")
	require.NoError(t, err)
	assert.Equal(t, "REDCAJ-3FA09C", instr.Code)
	assert.Equal(t, models.PlanBasic, instr.Plan)
	assert.True(t, instr.Amount.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, "Banco de Venezuela", instr.BankName)
	assert.Equal(t, "Carlos", instr.AccountHolder)
	assert.Contains(t, instr.Message, "REDCAJ-3FA09C")

	require.True(t, strings.HasPrefix(instr.WhatsAppURL, "https://wa.me/584121234567?text="))
	u, err := url.Parse(instr.WhatsAppURL)
	require.NoError(t, err)
	text := u.Query().Get("text")
	assert.Contains(t, text, "*REDCAJ-3FA09C*")
	assert.Contains(t, text, "Plan: BASIC")
	assert.Contains(t, text, "Monto: $9.99")

	pending, err := f.svc.PendingStatus(context.Background(), f.accountID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "REDCAJ-3FA09C", pending.Code)
	assert.Equal(t, models.PaymentPending, pending.Status)
	f.publisher.AssertExpectations(t)
}

func TestRequestPayment_Validation(t *testing.T) {
	tests := []struct {
		name     string
		plan     string
		account  string
		wantKind apperr.Kind
	}{
		{name: "unknown plan", plan: "gold", wantKind: apperr.KindValidation},
		{name: "trial is not purchasable", plan: models.PlanTrial, wantKind: apperr.KindValidation},
		{name: "missing account", plan: models.PlanBasic, account: "00000000-0000-0000-0000-000000000000", wantKind: apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &sequence{codes: []string{"REDCAJ-000001"}}, models.Account{})
			accountID := f.accountID
			if tt.account != "" {
				accountID = tt.account
			}
			_, err := f.svc.RequestPayment(context.Background(), accountID, tt.plan)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRequestPayment_SinglePending(t *testing.T) {
	f := newFixture(t, &sequence{codes: []string{"REDCAJ-000001", "REDCAJ-000002"}}, models.Account{})
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	_, err := f.svc.RequestPayment(ctx, f.accountID, models.PlanBasic)
	require.NoError(t, err)

	_, err = f.svc.RequestPayment(ctx, f.accountID, models.PlanPremium)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	f.settings.settings.SinglePendingRequest = false
	second, err := f.svc.RequestPayment(ctx, f.accountID, models.PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, "REDCAJ-000002", second.Code)
}

func TestRequestPayment_CodeCollision(t *testing.T) {
	f := newFixture(t, &sequence{codes: []string{"REDCAJ-AAAAAA", "REDCAJ-AAAAAA", "REDCAJ-BBBBBB"}}, models.Account{})
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.settings.settings.SinglePendingRequest = false
	ctx := context.Background()

	first, err := f.svc.RequestPayment(ctx, f.accountID, models.PlanBasic)
	require.NoError(t, err)
	second, err := f.svc.RequestPayment(ctx, f.accountID, models.PlanBasic)
	require.NoError(t, err)

	assert.Equal(t, "REDCAJ-AAAAAA", first.Code)
	assert.Equal(t, "REDCAJ-BBBBBB", second.Code)
}

func TestRequestPayment_CodeExhaustion(t *testing.T) {
	f := newFixture(t, &sequence{codes: []string{"REDCAJ-AAAAAA", "REDCAJ-AAAAAA", "REDCAJ-AAAAAA", "REDCAJ-AAAAAA"}}, models.Account{})
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.settings.settings.SinglePendingRequest = false
	ctx := context.Background()

	_, err := f.svc.RequestPayment(ctx, f.accountID, models.PlanBasic)
	require.NoError(t, err)

	_, err = f.svc.RequestPayment(ctx, f.accountID, models.PlanBasic)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestRequestPayment_UpgradePricing(t *testing.T) {
	future := fixedNow.AddDate(0, 0, 10)
	past := fixedNow.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		account models.Account
		plan    string
		want    string
	}{
		{name: "premium from trial", account: models.Account{Plan: models.PlanTrial, ExpiresAt: &future}, plan: models.PlanPremium, want: "19.99"},
		{name: "premium over active basic", account: models.Account{Plan: models.PlanBasic, ExpiresAt: &future}, plan: models.PlanPremium, want: "10.00"},
		{name: "premium over expired basic", account: models.Account{Plan: models.PlanBasic, ExpiresAt: &past}, plan: models.PlanPremium, want: "19.99"},
		{name: "basic renewal", account: models.Account{Plan: models.PlanBasic, ExpiresAt: &future}, plan: models.PlanBasic, want: "9.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &sequence{codes: []string{"REDCAJ-000001"}}, tt.account)
			f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

			instr, err := f.svc.RequestPayment(context.Background(), f.accountID, tt.plan)
			require.NoError(t, err)
			assert.True(t, instr.Amount.Equal(decimal.RequireFromString(tt.want)), "got %s", instr.Amount)
		})
	}
}

func TestRequestPayment_UpgradeNeverNegative(t *testing.T) {
	future := fixedNow.AddDate(0, 0, 10)
	f := newFixture(t, &sequence{codes: []string{"REDCAJ-000001"}}, models.Account{Plan: models.PlanBasic, ExpiresAt: &future})
	f.settings.settings.PricePremium = decimal.RequireFromString("5")
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	instr, err := f.svc.RequestPayment(context.Background(), f.accountID, models.PlanPremium)
	require.NoError(t, err)
	assert.True(t, instr.Amount.IsZero(), "got %s", instr.Amount)
}

func TestRequestPayment_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, &sequence{codes: []string{"REDCAJ-000001"}}, models.Account{})
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	_, err := f.svc.RequestPayment(context.Background(), f.accountID, models.PlanBasic)
	require.NoError(t, err)
	f.publisher.AssertExpectations(t)
}

func TestVerify(t *testing.T) {
	f := newFixture(t, &sequence{codes: []string{"REDCAJ-00000A"}}, models.Account{})
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingPaymentRequested, mock.Anything).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingPaymentVerified, mock.MatchedBy(func(e models.PaymentEvent) bool {
		return e.Status == models.PaymentVerified && e.Email == "owner@example.com" && e.ExpiresAt != nil
	})).Return(nil).Once()
	ctx := context.Background()

	_, err := f.svc.RequestPayment(ctx, f.accountID, models.PlanPremium)
	require.NoError(t, err)

	p, err := f.svc.Verify(ctx, " redcaj-00000a ")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentVerified, p.Status)
	assert.Equal(t, VerifiedNote, p.Notes)
	require.NotNil(t, p.ResolvedAt)
	assert.Equal(t, fixedNow, *p.ResolvedAt)

	a, err := f.store.GetAccount(ctx, f.accountID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPremium, a.Plan)
	require.NotNil(t, a.ExpiresAt)
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), *a.ExpiresAt)

	_, err = f.svc.Verify(ctx, "REDCAJ-00000A")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.svc.Reject(ctx, "REDCAJ-00000A", "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	pending, err := f.svc.PendingStatus(ctx, f.accountID)
	require.NoError(t, err)
	assert.Nil(t, pending)
	f.publisher.AssertExpectations(t)
}

func TestReject(t *testing.T) {
	trialEnd := fixedNow.AddDate(0, 0, 3)
	f := newFixture(t, &sequence{codes: []string{"REDCAJ-00000B"}}, models.Account{Plan: models.PlanTrial, ExpiresAt: &trialEnd})
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingPaymentRequested, mock.Anything).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingPaymentRejected, mock.MatchedBy(func(e models.PaymentEvent) bool {
		return e.Reason == DefaultRejectReason
	})).Return(nil).Once()
	ctx := context.Background()

	_, err := f.svc.RequestPayment(ctx, f.accountID, models.PlanBasic)
	require.NoError(t, err)

	p, err := f.svc.Reject(ctx, "REDCAJ-00000B", "   ")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRejected, p.Status)
	assert.Equal(t, DefaultRejectReason, p.Notes)

	a, err := f.store.GetAccount(ctx, f.accountID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanTrial, a.Plan)
	assert.Equal(t, trialEnd, *a.ExpiresAt)

	_, err = f.svc.Verify(ctx, "REDCAJ-00000B")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	f.publisher.AssertExpectations(t)
}

func TestListPendingAndStats(t *testing.T) {
	f := newFixture(t, &sequence{codes: []string{"REDCAJ-000001", "REDCAJ-000002"}}, models.Account{})
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	otherID, err := f.store.CreateAccount(ctx, models.Account{Email: "luis@example.com", Name: "Luis", Plan: models.PlanTrial, Active: true})
	require.NoError(t, err)

	_, err = f.svc.RequestPayment(ctx, f.accountID, models.PlanBasic)
	require.NoError(t, err)
	f.svc.WithClock(func() time.Time { return fixedNow.Add(time.Minute) })
	_, err = f.svc.RequestPayment(ctx, otherID, models.PlanPremium)
	require.NoError(t, err)

	list, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "owner@example.com", list[0].Email)
	assert.Equal(t, "Luis", list[1].Name)

	_, err = f.svc.Verify(ctx, "REDCAJ-000002")
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAccounts)
	assert.Equal(t, 1, stats.ActiveSubscriptions)
	assert.Equal(t, 1, stats.Trials)
	assert.Equal(t, 1, stats.VerifiedThisMonth)
	assert.True(t, stats.RevenueThisMonth.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 1, stats.PendingRequests)
}

// slowPendingStore задерживает проверку ожидающих заявок, как запрос к базе.
type slowPendingStore struct {
	*memory.Store
}

func (s slowPendingStore) HasPendingRequest(ctx context.Context, accountID string) (bool, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.HasPendingRequest(ctx, accountID)
}

func TestRequestPayment_ConcurrentRequestsKeepSinglePending(t *testing.T) {
	f := newFixture(t, paycode.New(), models.Account{})
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingPaymentRequested, mock.Anything).Return(nil)
	svc := New(slowPendingStore{f.store}, f.settings, paycode.New(), f.publisher, keylock.New(), billingCfg, newNoopLogger()).
		WithClock(func() time.Time { return fixedNow })

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RequestPayment(context.Background(), f.accountID, models.PlanBasic)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}
	assert.Equal(t, 1, ok)

	pending, err := f.store.ListPendingRequests(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
