// Package settings отдаёт действующие настройки: значения из конфига,
// поверх которых применены записи таблицы settings.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/redcajeros/internal/config"
	"github.com/magabrotheeeer/redcajeros/internal/lib/apperr"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

const cacheKey = "settings:current"

// Repository хранилище пар ключ-значение.
type Repository interface {
	ListSettings(ctx context.Context) (map[string]string, error)
	UpsertSettings(ctx context.Context, values map[string]string) error
}

// Cache кэш действующих настроек.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service поставщик настроек для остальных сервисов.
type Service struct {
	repo     Repository
	cache    Cache
	defaults models.Settings
	ttl      time.Duration
	log      *slog.Logger
}

// Defaults собирает настройки по умолчанию из конфига.
func Defaults(cfg *config.Config) models.Settings {
	return models.Settings{
		CommissionPercent:    decimal.NewFromFloat(cfg.CommissionPercent),
		Currency:             cfg.Currency,
		Platforms:            append([]string(nil), cfg.Platforms...),
		AllowDebts:           !cfg.ForbidDebts,
		MaxChargeAmount:      decimal.NewFromFloat(cfg.MaxChargeAmount),
		PriceBasic:           decimal.NewFromFloat(cfg.PriceBasic),
		PricePremium:         decimal.NewFromFloat(cfg.PricePremium),
		TrialDays:            cfg.TrialDays,
		SinglePendingRequest: !cfg.AllowMultiplePending,
		AdminEmail:           cfg.AdminEmail,
		AdminWhatsApp:        cfg.AdminWhatsApp,
		BankAccount:          cfg.BankAccount,
		BankName:             cfg.BankName,
		AccountHolder:        cfg.AccountHolder,
	}
}

// New создаёт сервис настроек.
func New(repo Repository, cache Cache, defaults models.Settings, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		defaults: defaults,
		ttl:      ttl,
		log:      log,
	}
}

// Current возвращает действующие настройки.
func (s *Service) Current(ctx context.Context) (*models.Settings, error) {
	const op = "settings.Current"

	var cached models.Settings
	found, err := s.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read settings from cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	stored, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}

	current := s.defaults
	current.Platforms = append([]string(nil), s.defaults.Platforms...)
	for key, value := range stored {
		if err := apply(&current, key, value); err != nil {
			s.log.Warn("ignoring stored setting", slog.String("key", key), sl.Err(err))
		}
	}

	if err := s.cache.Set(ctx, cacheKey, current, s.ttl); err != nil {
		s.log.Warn("failed to cache settings", sl.Err(err))
	}
	return &current, nil
}

// Public возвращает настройки, которые показываются без авторизации.
func (s *Service) Public(ctx context.Context) (*models.PublicSettings, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	p := current.Public()
	return &p, nil
}

// Update проверяет и сохраняет значения, затем сбрасывает кэш.
// Неизвестный ключ или некорректное значение отклоняют весь набор.
func (s *Service) Update(ctx context.Context, values map[string]string) (*models.Settings, error) {
	const op = "settings.Update"

	if len(values) == 0 {
		return nil, apperr.Validation("no settings provided")
	}

	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	next := *current
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		if err := apply(&next, key, value); err != nil {
			return nil, apperr.Validation(err.Error())
		}
		normalized[key] = normalize(key, value)
	}
	if next.PricePremium.LessThan(next.PriceBasic) {
		return nil, apperr.Validation("setting price_premium must not be lower than price_basic")
	}

	if err := s.repo.UpsertSettings(ctx, normalized); err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if err := s.cache.Invalidate(ctx, cacheKey); err != nil {
		s.log.Warn("failed to invalidate settings cache", sl.Err(err))
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.log.Info("settings updated", slog.Any("keys", keys))

	return s.Current(ctx)
}

func splitPlatforms(value string) []string {
	seen := make(map[string]bool)
	var res []string
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		res = append(res, p)
	}
	return res
}

func normalize(key, value string) string {
	if key == models.SettingPlatforms {
		return strings.Join(splitPlatforms(value), ",")
	}
	return strings.TrimSpace(value)
}

func parsePositiveDecimal(key, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("setting %s must be a positive number", key)
	}
	return d, nil
}

func apply(st *models.Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case models.SettingCommissionPercent:
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("setting %s must be between 0 and 100", key)
		}
		st.CommissionPercent = d
	case models.SettingCurrency:
		if value == "" {
			return fmt.Errorf("setting %s must not be empty", key)
		}
		st.Currency = value
	case models.SettingPlatforms:
		platforms := splitPlatforms(value)
		if len(platforms) == 0 {
			return fmt.Errorf("setting %s must list at least one platform", key)
		}
		st.Platforms = platforms
	case models.SettingAllowDebts, models.SettingSinglePendingRequest:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("setting %s must be true or false", key)
		}
		if key == models.SettingAllowDebts {
			st.AllowDebts = b
		} else {
			st.SinglePendingRequest = b
		}
	case models.SettingMaxChargeAmount:
		d, err := parsePositiveDecimal(key, value)
		if err != nil {
			return err
		}
		st.MaxChargeAmount = d
	case models.SettingPriceBasic:
		d, err := parsePositiveDecimal(key, value)
		if err != nil {
			return err
		}
		st.PriceBasic = d
	case models.SettingPricePremium:
		d, err := parsePositiveDecimal(key, value)
		if err != nil {
			return err
		}
		st.PricePremium = d
	case models.SettingTrialDays:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("setting %s must be a non-negative integer", key)
		}
		st.TrialDays = n
	case models.SettingAdminEmail:
		st.AdminEmail = value
	case models.SettingAdminWhatsApp:
		st.AdminWhatsApp = value
	case models.SettingBankAccount:
		st.BankAccount = value
	case models.SettingBankName:
		st.BankName = value
	case models.SettingAccountHolder:
		st.AccountHolder = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
