// Package models содержит доменные структуры RedCajeros: аккаунты владельцев,
// кассиров, записи журнала (cargas), расчёты и заявки на оплату подписки,
// а также структуры для приёма данных из JSON-запросов.
package models

import "time"

// Тарифные планы аккаунта.
const (
	PlanTrial   = "trial"
	PlanFree    = "free"
	PlanBasic   = "basic"
	PlanPremium = "premium"
	PlanExpired = "expired"
	PlanAdmin   = "admin"
)

// Роли, передаваемые в JWT.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account представляет владельца журнала (арендатора системы).
// ExpiresAt == nil означает бессрочную подписку.
type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone,omitempty"`
	Plan         string     `json:"plan"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Active       bool       `json:"active"`
	IsAdmin      bool       `json:"is_admin"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SubscriptionActive сообщает, может ли аккаунт изменять журнал в момент now.
func (a *Account) SubscriptionActive(now time.Time) bool {
	switch {
	case a.IsAdmin || a.Plan == PlanAdmin:
		return true
	case a.Plan == PlanExpired:
		return false
	case a.ExpiresAt == nil:
		return true
	default:
		return a.ExpiresAt.After(now)
	}
}

// DaysRemaining возвращает количество полных дней до окончания подписки.
// Для бессрочной подписки возвращает -1.
func (a *Account) DaysRemaining(now time.Time) int {
	if a.ExpiresAt == nil {
		return -1
	}
	d := a.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Role возвращает роль аккаунта для JWT.
func (a *Account) Role() string {
	if a.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Identity описывает аутентифицированного пользователя, извлечённого из токена.
type Identity struct {
	AccountID string
	Email     string
	Role      string
}

// AccountInfo возвращается эндпоинтом /auth/me.
type AccountInfo struct {
	Account
	SubscriptionActive bool `json:"subscription_active"`
	DaysRemaining      int  `json:"days_remaining"`
}

// RegisterInput используется для приёма данных регистрации из JSON-запроса.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone,omitempty" validate:"omitempty"`
}

// LoginInput используется для приёма учётных данных из JSON-запроса.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
