package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Виды записей журнала.
const (
	// KindCharge обычная запись кассира.
	KindCharge = "charge"
	// KindPaymentTrace синтетическая запись, фиксирующая расчёт в общем потоке журнала.
	KindPaymentTrace = "payment_trace"
)

// TracePlatform метка платформы, под которой отображается запись расчёта.
const TracePlatform = "PAGO"

// Cashier представляет кассира, принадлежащего одному аккаунту.
type Cashier struct {
	ID        int64     `json:"id"`
	AccountID string    `json:"-"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Charge запись журнала. Amount != 0, отрицательная сумма означает долг.
// IsDebt вычисляется один раз при создании.
type Charge struct {
	ID          int64           `json:"id"`
	AccountID   string          `json:"-"`
	CashierID   int64           `json:"cashier_id"`
	CashierName string          `json:"cashier_name,omitempty"`
	Platform    string          `json:"platform"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        string          `json:"kind"`
	Note        string          `json:"note,omitempty"`
	Paid        bool            `json:"paid"`
	IsDebt      bool            `json:"is_debt"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ChargeInput используется для приёма новой записи из JSON-запроса.
type ChargeInput struct {
	CashierID int64           `json:"cashier_id" validate:"required,gt=0"`
	Platform  string          `json:"platform" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty" validate:"omitempty,max=500"`
}

// ChargeFilter параметры выборки записей журнала.
type ChargeFilter struct {
	From      *time.Time
	To        *time.Time
	CashierID *int64
	Platform  *string
	Limit     int
}

// CashierInput используется для создания и изменения кассира.
type CashierInput struct {
	Name   string `json:"name" validate:"required"`
	Active *bool  `json:"active,omitempty"`
}

// Outstanding непогашенный остаток кассира.
type Outstanding struct {
	CashierID int64           `json:"cashier_id"`
	Total     decimal.Decimal `json:"total"`
	Count     int             `json:"count"`
}

// PlatformTotal агрегат непогашенных записей кассира по одной платформе.
type PlatformTotal struct {
	CashierID int64
	Platform  string
	Total     decimal.Decimal
	Count     int
}

// SummaryLine строка сводки по одному активному кассиру.
type SummaryLine struct {
	CashierID   int64                      `json:"cashier_id"`
	CashierName string                     `json:"cashier_name"`
	Platforms   map[string]decimal.Decimal `json:"platforms"`
	Total       decimal.Decimal            `json:"total"`
	Count       int                        `json:"count"`
	Commission  decimal.Decimal            `json:"commission"`
}

// Summary сводка по всем активным кассирам аккаунта.
type Summary struct {
	Platforms  []string        `json:"platforms"`
	Currency   string          `json:"currency"`
	Lines      []SummaryLine   `json:"lines"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// LedgerStats показатели для главной панели.
type LedgerStats struct {
	TodayTotal       decimal.Decimal `json:"today_total"`
	TodayCount       int             `json:"today_count"`
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
	ActiveCashiers   int             `json:"active_cashiers"`
	TopCashier       *SummaryLine    `json:"top_cashier,omitempty"`
}
