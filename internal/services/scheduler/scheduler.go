// Package scheduler периодически предупреждает владельцев об окончании подписки
// и переводит просроченные аккаунты на тариф expired.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/redcajeros/internal/config"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/rabbitmq"
)

// AccountRepository хранилище аккаунтов для планировщика.
type AccountRepository interface {
	FindAccountsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Account, error)
	ExpireAccounts(ctx context.Context, now time.Time) (int64, error)
}

// Publisher публикует события для notification-sender.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service планировщик уведомлений.
type Service struct {
	repo         AccountRepository
	publisher    Publisher
	interval     time.Duration
	notifyBefore time.Duration
	log          *slog.Logger
	now          func() time.Time

	// notifiedUntil верхняя граница окна, по которому уведомления уже отправлены.
	notifiedUntil time.Time
}

// New создаёт новый экземпляр Service.
func New(repo AccountRepository, publisher Publisher, cfg config.Scheduler, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		publisher:    publisher,
		interval:     cfg.Interval,
		notifyBefore: cfg.NotifyBefore,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run выполняет проход сразу и затем каждые interval, пока ctx не завершён.
func (s *Service) Run(ctx context.Context) {
	s.runOnceLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runOnceLogged(ctx)
		}
	}
}

func (s *Service) runOnceLogged(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.log.Error("scheduler pass failed", sl.Err(err))
	}
}

// RunOnce публикует subscription.expiring для аккаунтов, срок которых истекает
// в ближайшие notifyBefore, затем переводит просроченные аккаунты на expired.
// Аккаунт из уже обработанного окна повторно не уведомляется.
func (s *Service) RunOnce(ctx context.Context) error {
	const op = "scheduler.RunOnce"

	now := s.now()
	from := now
	if s.notifiedUntil.After(from) {
		from = s.notifiedUntil
	}
	to := now.Add(s.notifyBefore)

	if from.Before(to) {
		accounts, err := s.repo.FindAccountsExpiringBetween(ctx, from, to)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if len(accounts) == 0 {
			s.log.Info("no expiring subscriptions found")
		} else {
			s.log.Info("found expiring subscriptions", slog.Int("count", len(accounts)))
		}
		for _, a := range accounts {
			event := models.ExpiringEvent{
				AccountID: a.ID,
				Email:     a.Email,
				Name:      a.Name,
				Plan:      a.Plan,
				ExpiresAt: *a.ExpiresAt,
			}
			if err := s.publisher.Publish(ctx, rabbitmq.RoutingSubscriptionExpiring, event); err != nil {
				s.log.Error("failed to publish message", sl.Account(a.ID), sl.Err(err))
			}
		}
		s.notifiedUntil = to
	}

	expired, err := s.repo.ExpireAccounts(ctx, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if expired > 0 {
		s.log.Info("accounts moved to expired plan", slog.Int64("count", expired))
	}
	return nil
}
