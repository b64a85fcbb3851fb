// Package billing ведёт ручную оплату подписки: заявка с кодом подтверждения,
// проверка администратором и продление тарифа аккаунта.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/redcajeros/internal/config"
	"github.com/magabrotheeeer/redcajeros/internal/lib/apperr"
	"github.com/magabrotheeeer/redcajeros/internal/lib/paycode"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/lib/whatsapp"
	"github.com/magabrotheeeer/redcajeros/internal/metrics"
	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/rabbitmq"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

const (
	// VerifiedNote примечание, с которым сохраняется подтверждённая заявка.
	VerifiedNote = "Verified manually by admin"
	// DefaultRejectReason причина отклонения, если администратор её не указал.
	DefaultRejectReason = "Payment not verified"
)

// Repository хранилище заявок и аккаунтов.
type Repository interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	HasPendingRequest(ctx context.Context, accountID string) (bool, error)
	PaymentCodeExists(ctx context.Context, code string) (bool, error)
	CreatePaymentRequest(ctx context.Context, p models.PaymentRequest) (int64, error)
	LatestPendingRequest(ctx context.Context, accountID string) (*models.PaymentRequest, error)
	ListPendingRequests(ctx context.Context) ([]models.PendingPayment, error)
	VerifyPaymentRequest(ctx context.Context, code, notes string, resolvedAt, expiresAt time.Time) (*models.PaymentRequest, error)
	RejectPaymentRequest(ctx context.Context, code, reason string, resolvedAt time.Time) (*models.PaymentRequest, error)
	BillingStats(ctx context.Context, now, monthStart time.Time) (*models.BillingStats, error)
}

// SettingsProvider источник действующих настроек.
type SettingsProvider interface {
	Current(ctx context.Context) (*models.Settings, error)
}

// CodeGenerator выдаёт коды подтверждения оплаты.
type CodeGenerator interface {
	Generate() (string, error)
}

// Publisher публикует события для notification-sender.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Locker сериализует записи одного аккаунта.
type Locker interface {
	Lock(key string) (unlock func())
}

// Service сервис оплаты подписки.
type Service struct {
	repo         Repository
	settings     SettingsProvider
	codes        CodeGenerator
	publisher    Publisher
	locks        Locker
	renewalDays  int
	codeAttempts int
	log          *slog.Logger
	now          func() time.Time
}

// New создаёт сервис оплаты. Продление и число попыток генерации кода берутся из cfg.
func New(repo Repository, settings SettingsProvider, codes CodeGenerator, publisher Publisher, locks Locker, cfg config.Billing, log *slog.Logger) *Service {
	attempts := cfg.CodeAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Service{
		repo:         repo,
		settings:     settings,
		codes:        codes,
		publisher:    publisher,
		locks:        locks,
		renewalDays:  cfg.RenewalDays,
		codeAttempts: attempts,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func internal(op string, err error) error {
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}

// price возвращает сумму к оплате. Переход с действующего basic на premium
// оплачивается разницей цен, но не меньше нуля.
func price(st *models.Settings, account *models.Account, plan string, now time.Time) decimal.Decimal {
	amount, _ := st.Price(plan)
	if plan == models.PlanPremium &&
		account.Plan == models.PlanBasic &&
		account.Active &&
		account.ExpiresAt != nil && account.ExpiresAt.After(now) {
		amount = decimal.Max(st.PricePremium.Sub(st.PriceBasic), decimal.Zero)
	}
	return amount.Round(2)
}

func (s *Service) newCode(ctx context.Context, op string) (string, error) {
	for i := 0; i < s.codeAttempts; i++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", internal(op, err)
		}
		taken, err := s.repo.PaymentCodeExists(ctx, code)
		if err != nil {
			return "", internal(op, err)
		}
		if !taken {
			return code, nil
		}
		s.log.Warn("payment code collision", slog.String("code", code))
	}
	return "", internal(op, fmt.Errorf("no free payment code after %d attempts", s.codeAttempts))
}

func whatsappMessage(holder, name, code, plan, currency string, amount decimal.Decimal) string {
	return fmt.Sprintf(
		"Hola %s!\n\nSoy %s de RedCajeros.\nTe envío el comprobante del pago con código:\n*%s*\n\nPlan: %s\nMonto: %s%s\n\n¡Gracias!",
		holder, name, code, strings.ToUpper(plan), currency, amount.StringFixed(2),
	)
}

func (s *Service) publish(ctx context.Context, routingKey string, event models.PaymentEvent) {
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		s.log.Error("failed to publish payment event",
			slog.String("routing_key", routingKey),
			slog.String("code", event.Code),
			sl.Err(err),
		)
	}
}

// createRequest проверяет ожидающие заявки и сохраняет новую под блокировкой аккаунта.
func (s *Service) createRequest(ctx context.Context, op, accountID string, st *models.Settings, account *models.Account, plan string) (*models.PaymentRequest, error) {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	if st.SinglePendingRequest {
		pending, err := s.repo.HasPendingRequest(ctx, accountID)
		if err != nil {
			return nil, internal(op, err)
		}
		if pending {
			return nil, apperr.Conflict("a pending payment request already exists")
		}
	}

	code, err := s.newCode(ctx, op)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req := models.PaymentRequest{
		AccountID:   accountID,
		Code:        code,
		Plan:        plan,
		Amount:      price(st, account, plan, now),
		Status:      models.PaymentPending,
		RequestedAt: now,
	}
	if req.ID, err = s.repo.CreatePaymentRequest(ctx, req); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict("payment code already used, retry the request")
		}
		return nil, internal(op, err)
	}
	return &req, nil
}

// RequestPayment создаёт заявку на оплату тарифа plan и возвращает реквизиты для перевода.
func (s *Service) RequestPayment(ctx context.Context, accountID, plan string) (*models.PaymentInstructions, error) {
	const op = "billing.RequestPayment"

	plan = strings.ToLower(strings.TrimSpace(plan))
	if plan != models.PlanBasic && plan != models.PlanPremium {
		return nil, apperr.Validation("plan must be basic or premium")
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, internal(op, err)
	}
	st, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	req, err := s.createRequest(ctx, op, accountID, st, account, plan)
	if err != nil {
		return nil, err
	}
	code := req.Code

	metrics.PaymentRequests.WithLabelValues(models.PaymentPending).Inc()
	s.log.Info("payment requested", sl.Account(accountID), slog.String("code", code), slog.String("plan", plan))

	s.publish(ctx, rabbitmq.RoutingPaymentRequested, models.PaymentEvent{
		Code:      code,
		Status:    req.Status,
		Plan:      plan,
		Amount:    req.Amount,
		AccountID: accountID,
		Email:     account.Email,
		Name:      account.Name,
	})

	return &models.PaymentInstructions{
		Code:          code,
		Amount:        req.Amount,
		Currency:      st.Currency,
		Plan:          plan,
		BankAccount:   st.BankAccount,
		BankName:      st.BankName,
		AccountHolder: st.AccountHolder,
		WhatsApp:      st.AdminWhatsApp,
		WhatsAppURL: whatsapp.Link(st.AdminWhatsApp,
			whatsappMessage(st.AccountHolder, account.Name, code, plan, st.Currency, req.Amount)),
		Message: fmt.Sprintf("Include this code in your message: %s", code),
	}, nil
}

// PendingStatus возвращает последнюю ожидающую заявку аккаунта или nil.
func (s *Service) PendingStatus(ctx context.Context, accountID string) (*models.PaymentRequest, error) {
	const op = "billing.PendingStatus"

	p, err := s.repo.LatestPendingRequest(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, internal(op, err)
	}
	return p, nil
}

// ListPending возвращает очередь ожидающих заявок, старые первыми.
func (s *Service) ListPending(ctx context.Context) ([]models.PendingPayment, error) {
	list, err := s.repo.ListPendingRequests(ctx)
	if err != nil {
		return nil, internal("billing.ListPending", err)
	}
	return list, nil
}

// Verify подтверждает заявку и выставляет аккаунту срок now + renewal_days.
// Повторное подтверждение той же заявки возвращает NotFound.
func (s *Service) Verify(ctx context.Context, code string) (*models.PaymentRequest, error) {
	const op = "billing.Verify"

	code = paycode.Normalize(code)
	now := s.now()
	expiresAt := now.AddDate(0, 0, s.renewalDays)

	p, err := s.repo.VerifyPaymentRequest(ctx, code, VerifiedNote, now, expiresAt)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("pending payment request not found")
		}
		return nil, internal(op, err)
	}

	metrics.PaymentRequests.WithLabelValues(models.PaymentVerified).Inc()
	s.log.Info("payment verified", sl.Account(p.AccountID), slog.String("code", code), slog.String("plan", p.Plan))

	event := models.PaymentEvent{
		Code:      p.Code,
		Status:    p.Status,
		Plan:      p.Plan,
		Amount:    p.Amount,
		AccountID: p.AccountID,
		ExpiresAt: &expiresAt,
	}
	s.withOwner(ctx, &event)
	s.publish(ctx, rabbitmq.RoutingPaymentVerified, event)
	return p, nil
}

// Reject отклоняет заявку. Аккаунт не меняется.
func (s *Service) Reject(ctx context.Context, code, reason string) (*models.PaymentRequest, error) {
	const op = "billing.Reject"

	code = paycode.Normalize(code)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectReason
	}

	p, err := s.repo.RejectPaymentRequest(ctx, code, reason, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("pending payment request not found")
		}
		return nil, internal(op, err)
	}

	metrics.PaymentRequests.WithLabelValues(models.PaymentRejected).Inc()
	s.log.Info("payment rejected", sl.Account(p.AccountID), slog.String("code", code))

	event := models.PaymentEvent{
		Code:      p.Code,
		Status:    p.Status,
		Plan:      p.Plan,
		Amount:    p.Amount,
		AccountID: p.AccountID,
		Reason:    reason,
	}
	s.withOwner(ctx, &event)
	s.publish(ctx, rabbitmq.RoutingPaymentRejected, event)
	return p, nil
}

// withOwner дополняет событие контактами владельца.
func (s *Service) withOwner(ctx context.Context, event *models.PaymentEvent) {
	a, err := s.repo.GetAccount(ctx, event.AccountID)
	if err != nil {
		s.log.Warn("failed to load account for payment event", sl.Account(event.AccountID), sl.Err(err))
		return
	}
	event.Email = a.Email
	event.Name = a.Name
}

// Stats показатели административной панели на момент now.
func (s *Service) Stats(ctx context.Context, now time.Time) (*models.BillingStats, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	stats, err := s.repo.BillingStats(ctx, now, monthStart)
	if err != nil {
		return nil, internal("billing.Stats", err)
	}
	return stats, nil
}
