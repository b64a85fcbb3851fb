// Package auth отвечает за регистрацию, вход, проверку токенов и статус подписки аккаунта.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/redcajeros/internal/lib/apperr"
	"github.com/magabrotheeeer/redcajeros/internal/lib/jwt"
	"github.com/magabrotheeeer/redcajeros/internal/lib/password"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/storage"
)

const (
	msgInvalidCredentials = "invalid credentials"
	dummyPassword         = "redcajeros-unknown-account"
)

// AccountRepository описывает контракт хранилища аккаунтов.
type AccountRepository interface {
	CreateAccount(ctx context.Context, a models.Account) (string, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateAccount(ctx context.Context, a models.Account) error
}

// SettingsProvider источник действующих настроек.
type SettingsProvider interface {
	Current(ctx context.Context) (*models.Settings, error)
}

// Service сервис учётных записей.
type Service struct {
	accounts AccountRepository
	settings SettingsProvider
	jwtMaker jwt.Maker
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time
	check    func(hash, raw string) error

	dummyOnce sync.Once
	dummyHash string
}

// New создаёт новый экземпляр Service.
func New(accounts AccountRepository, settings SettingsProvider, jwtMaker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		settings: settings,
		jwtMaker: jwtMaker,
		validate: validator.New(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		check:    password.CompareHash,
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithPasswordCheck подменяет сравнение пароля с хэшем.
func (s *Service) WithPasswordCheck(check func(hash, raw string) error) *Service {
	s.check = check
	return s
}

// dummy возвращает хэш, с которым сравнивается пароль неизвестного email.
// Время ответа не зависит от того, существует ли аккаунт.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := password.GetHash(dummyPassword)
		if err != nil {
			s.log.Error("failed to prepare dummy password hash", sl.Err(err))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		fe := errs[0]
		switch fe.ActualTag() {
		case "required":
			return fmt.Sprintf("field %s is a required field", fe.Field())
		case "email":
			return fmt.Sprintf("field %s is not a valid email", fe.Field())
		case "min":
			return fmt.Sprintf("field %s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("field %s is not valid", fe.Field())
	}
	return "invalid request"
}

// Register создаёт аккаунт на пробном тарифе.
func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*models.Account, error) {
	const op = "auth.Register"

	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Validation(validationMessage(err))
	}

	st, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	hashed, err := password.GetHash(in.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}

	now := s.now()
	expires := now.AddDate(0, 0, st.TrialDays)
	account := models.Account{
		Email:        in.Email,
		PasswordHash: hashed,
		Name:         in.Name,
		Phone:        in.Phone,
		Plan:         models.PlanTrial,
		ExpiresAt:    &expires,
		Active:       true,
		CreatedAt:    now,
	}

	id, err := s.accounts.CreateAccount(ctx, account)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	account.ID = id

	s.log.Info("account registered", sl.Account(id), slog.String("plan", account.Plan))
	return &account, nil
}

// Login проверяет учётные данные и выдаёт JWT.
// Истёкшая подписка вход не блокирует, чтобы владелец мог продлить её.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (string, *models.Account, error) {
	const op = "auth.Login"

	account, err := s.accounts.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_ = s.check(s.dummy(), rawPassword)
			return "", nil, apperr.Auth(msgInvalidCredentials)
		}
		return "", nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if err := s.check(account.PasswordHash, rawPassword); err != nil {
		return "", nil, apperr.Auth(msgInvalidCredentials)
	}
	if !account.Active {
		return "", nil, apperr.Auth(msgInvalidCredentials)
	}

	token, err := s.jwtMaker.GenerateToken(account.ID, account.Email, account.Role())
	if err != nil {
		return "", nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return token, account, nil
}

// ValidateToken проверяет JWT и возвращает личность владельца.
func (s *Service) ValidateToken(_ context.Context, token string) (*models.Identity, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, apperr.Auth("invalid token")
	}
	return &models.Identity{
		AccountID: claims.AccountID,
		Email:     claims.Email,
		Role:      claims.Role,
	}, nil
}

func (s *Service) getAccount(ctx context.Context, op, accountID string) (*models.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return account, nil
}

// SubscriptionActive сообщает, может ли аккаунт изменять журнал.
func (s *Service) SubscriptionActive(ctx context.Context, accountID string) (bool, error) {
	account, err := s.getAccount(ctx, "auth.SubscriptionActive", accountID)
	if err != nil {
		return false, err
	}
	return account.Active && account.SubscriptionActive(s.now()), nil
}

// Me возвращает данные аккаунта и остаток подписки.
func (s *Service) Me(ctx context.Context, accountID string) (*models.AccountInfo, error) {
	account, err := s.getAccount(ctx, "auth.Me", accountID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &models.AccountInfo{
		Account:            *account,
		SubscriptionActive: account.SubscriptionActive(now),
		DaysRemaining:      account.DaysRemaining(now),
	}, nil
}

// EnsureAdmin создаёт администратора или приводит существующий аккаунт к роли администратора.
// Повторный вызов с теми же данными ничего не меняет.
func (s *Service) EnsureAdmin(ctx context.Context, email, rawPassword, name string) (*models.Account, error) {
	const op = "auth.EnsureAdmin"

	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("admin email is required")
	}

	existing, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}

	if existing == nil {
		if len(rawPassword) < password.MinLength {
			return nil, apperr.Validation(fmt.Sprintf("admin password must be at least %d characters", password.MinLength))
		}
		hashed, err := password.GetHash(rawPassword)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
		}
		admin := models.Account{
			Email:        email,
			PasswordHash: hashed,
			Name:         name,
			Plan:         models.PlanAdmin,
			Active:       true,
			IsAdmin:      true,
			CreatedAt:    s.now(),
		}
		id, err := s.accounts.CreateAccount(ctx, admin)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
		}
		admin.ID = id
		s.log.Info("admin account created", sl.Account(id))
		return &admin, nil
	}

	changed := false
	if !existing.IsAdmin || existing.Plan != models.PlanAdmin || existing.ExpiresAt != nil || !existing.Active {
		existing.IsAdmin = true
		existing.Plan = models.PlanAdmin
		existing.ExpiresAt = nil
		existing.Active = true
		changed = true
	}
	if rawPassword != "" && password.CompareHash(existing.PasswordHash, rawPassword) != nil {
		if len(rawPassword) < password.MinLength {
			return nil, apperr.Validation(fmt.Sprintf("admin password must be at least %d characters", password.MinLength))
		}
		hashed, err := password.GetHash(rawPassword)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
		}
		existing.PasswordHash = hashed
		changed = true
	}
	if !changed {
		return existing, nil
	}
	if err := s.accounts.UpdateAccount(ctx, *existing); err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	s.log.Info("admin account updated", sl.Account(existing.ID))
	return existing, nil
}
