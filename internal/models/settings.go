package models

import "github.com/shopspring/decimal"

// Ключи настроек, которые администратор может менять во время работы.
const (
	SettingCommissionPercent    = "commission_percent"
	SettingCurrency             = "currency"
	SettingPlatforms            = "platforms"
	SettingAllowDebts           = "allow_debts"
	SettingMaxChargeAmount      = "max_charge_amount"
	SettingPriceBasic           = "price_basic"
	SettingPricePremium         = "price_premium"
	SettingTrialDays            = "trial_days"
	SettingSinglePendingRequest = "single_pending_request"
	SettingAdminEmail           = "admin_email"
	SettingAdminWhatsApp        = "admin_whatsapp"
	SettingBankAccount          = "bank_account"
	SettingBankName             = "bank_name"
	SettingAccountHolder        = "account_holder"
)

// Settings действующая конфигурация журнала и биллинга.
type Settings struct {
	CommissionPercent    decimal.Decimal `json:"commission_percent"`
	Currency             string          `json:"currency"`
	Platforms            []string        `json:"platforms"`
	AllowDebts           bool            `json:"allow_debts"`
	MaxChargeAmount      decimal.Decimal `json:"max_charge_amount"`
	PriceBasic           decimal.Decimal `json:"price_basic"`
	PricePremium         decimal.Decimal `json:"price_premium"`
	TrialDays            int             `json:"trial_days"`
	SinglePendingRequest bool            `json:"single_pending_request"`
	AdminEmail           string          `json:"admin_email"`
	AdminWhatsApp        string          `json:"admin_whatsapp"`
	BankAccount          string          `json:"bank_account"`
	BankName             string          `json:"bank_name"`
	AccountHolder        string          `json:"account_holder"`
}

// HasPlatform проверяет, входит ли платформа в настроенный список.
func (s *Settings) HasPlatform(platform string) bool {
	for _, p := range s.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Price возвращает цену тарифа или false для неизвестного тарифа.
func (s *Settings) Price(plan string) (decimal.Decimal, bool) {
	switch plan {
	case PlanBasic:
		return s.PriceBasic, true
	case PlanPremium:
		return s.PricePremium, true
	default:
		return decimal.Zero, false
	}
}

// PublicSettings часть настроек, доступная без авторизации.
type PublicSettings struct {
	Currency          string          `json:"currency"`
	Platforms         []string        `json:"platforms"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	PriceBasic        decimal.Decimal `json:"price_basic"`
	PricePremium      decimal.Decimal `json:"price_premium"`
	TrialDays         int             `json:"trial_days"`
	AdminWhatsApp     string          `json:"admin_whatsapp"`
}

// Public возвращает публичную часть настроек.
func (s *Settings) Public() PublicSettings {
	return PublicSettings{
		Currency:          s.Currency,
		Platforms:         s.Platforms,
		CommissionPercent: s.CommissionPercent,
		PriceBasic:        s.PriceBasic,
		PricePremium:      s.PricePremium,
		TrialDays:         s.TrialDays,
		AdminWhatsApp:     s.AdminWhatsApp,
	}
}
