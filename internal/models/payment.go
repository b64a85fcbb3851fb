package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Состояния заявки на оплату.
const (
	PaymentPending  = "pending"
	PaymentVerified = "verified"
	PaymentRejected = "rejected"
)

// PaymentRequest заявка на ручную оплату подписки.
type PaymentRequest struct {
	ID          int64           `json:"id"`
	AccountID   string          `json:"account_id"`
	Code        string          `json:"code"`
	Plan        string          `json:"plan"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// PaymentInput используется для приёма запроса на оплату из JSON.
type PaymentInput struct {
	Plan string `json:"plan" validate:"required,oneof=basic premium"`
}

// RejectInput причина отклонения заявки.
type RejectInput struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// PaymentInstructions данные, которые владелец использует для перевода и подтверждения.
type PaymentInstructions struct {
	Code          string          `json:"code"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Plan          string          `json:"plan"`
	BankAccount   string          `json:"bank_account"`
	BankName      string          `json:"bank_name"`
	AccountHolder string          `json:"account_holder"`
	WhatsApp      string          `json:"whatsapp"`
	WhatsAppURL   string          `json:"whatsapp_url"`
	Message       string          `json:"message"`
}

// PendingPayment заявка в очереди администратора вместе с данными владельца.
type PendingPayment struct {
	PaymentRequest
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// BillingStats показатели административной панели.
type BillingStats struct {
	TotalAccounts       int             `json:"total_accounts"`
	ActiveSubscriptions int             `json:"active_subscriptions"`
	Trials              int             `json:"trials"`
	Expired             int             `json:"expired"`
	VerifiedThisMonth   int             `json:"verified_this_month"`
	RevenueThisMonth    decimal.Decimal `json:"revenue_this_month"`
	PendingRequests     int             `json:"pending_requests"`
}

// PaymentEvent сообщение, публикуемое в RabbitMQ при смене состояния заявки.
type PaymentEvent struct {
	Code      string          `json:"code"`
	Status    string          `json:"status"`
	Plan      string          `json:"plan"`
	Amount    decimal.Decimal `json:"amount"`
	AccountID string          `json:"account_id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Reason    string          `json:"reason,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// ExpiringEvent сообщение планировщика о скором окончании подписки.
type ExpiringEvent struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	ExpiresAt time.Time `json:"expires_at"`
}
