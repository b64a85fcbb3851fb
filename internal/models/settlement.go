package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ветки распределения оплаты.
const (
	BranchFull    = "full"
	BranchPartial = "partial"
)

// Settlement неизменяемая запись о расчёте с кассиром.
type Settlement struct {
	ID               int64           `json:"id"`
	AccountID        string          `json:"-"`
	CashierID        int64           `json:"cashier_id"`
	CashierName      string          `json:"cashier_name,omitempty"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
	ChargesSettled   int             `json:"charges_settled"`
	Note             string          `json:"note,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// SettlementRequest используется для приёма оплаты из JSON-запроса.
// AmountPaid == nil означает оплату всего остатка.
type SettlementRequest struct {
	CashierID  int64            `json:"cashier_id" validate:"required,gt=0"`
	AmountPaid *decimal.Decimal `json:"amount_paid,omitempty"`
	Note       string           `json:"note,omitempty" validate:"omitempty,max=500"`
}

// SettlementApplication набор изменений, который хранилище применяет атомарно.
// Trace == nil, если синтетическая запись не нужна.
type SettlementApplication struct {
	Settlement Settlement
	ChargeIDs  []int64
	Trace      *Charge
}

// SettlementResult результат проведения расчёта.
type SettlementResult struct {
	SettlementID     int64           `json:"settlement_id"`
	CashierID        int64           `json:"cashier_id"`
	CashierName      string          `json:"cashier_name"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
	Difference       decimal.Decimal `json:"difference"`
	ChargesSettled   int             `json:"charges_settled"`
	Branch           string          `json:"branch"`
	Note             string          `json:"note"`
	CreatedAt        time.Time       `json:"created_at"`
}
