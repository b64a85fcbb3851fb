// Package sender превращает события RabbitMQ в письма владельцам аккаунтов и администратору.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/lib/smtp"
	"github.com/magabrotheeeer/redcajeros/internal/metrics"
	"github.com/magabrotheeeer/redcajeros/internal/models"
	"github.com/magabrotheeeer/redcajeros/internal/rabbitmq"
)

// Mailer отправляет письмо.
type Mailer interface {
	Send(ctx context.Context, msg smtp.Message) error
}

// Service отправляет уведомления по SMTP.
type Service struct {
	mailer     Mailer
	adminEmail string
	log        *slog.Logger
}

// New создаёт новый экземпляр Service. Письма о новых заявках уходят на adminEmail.
func New(mailer Mailer, adminEmail string, log *slog.Logger) *Service {
	return &Service{
		mailer:     mailer,
		adminEmail: adminEmail,
		log:        log,
	}
}

// Handle обрабатывает сообщение очереди. Подходит как rabbitmq.Handler.
// Сообщения с неизвестным ключом и без получателя подтверждаются без отправки.
func (s *Service) Handle(ctx context.Context, routingKey string, body []byte) error {
	const op = "sender.Handle"

	var (
		to      string
		subject string
		text    string
		err     error
	)
	switch routingKey {
	case rabbitmq.RoutingPaymentRequested, rabbitmq.RoutingPaymentVerified, rabbitmq.RoutingPaymentRejected:
		var event models.PaymentEvent
		if err = json.Unmarshal(body, &event); err != nil {
			break
		}
		to, subject, text = s.paymentEmail(routingKey, event)
	case rabbitmq.RoutingSubscriptionExpiring:
		var event models.ExpiringEvent
		if err = json.Unmarshal(body, &event); err != nil {
			break
		}
		to, subject, text = expiringEmail(event)
	default:
		s.log.Warn("message with unknown routing key dropped", slog.String("routing_key", routingKey))
		metrics.NotificationsSent.WithLabelValues(routingKey, "skipped").Inc()
		return nil
	}
	if err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("routing_key", routingKey), sl.Err(err))
		metrics.NotificationsSent.WithLabelValues(routingKey, "invalid").Inc()
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	if to == "" {
		s.log.Warn("message without recipient skipped", slog.String("routing_key", routingKey))
		metrics.NotificationsSent.WithLabelValues(routingKey, "skipped").Inc()
		return nil
	}

	msg := smtp.Message{To: []string{to}, Subject: subject, Body: text}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error("failed to send email", slog.String("routing_key", routingKey), slog.String("to", to), sl.Err(err))
		metrics.NotificationsSent.WithLabelValues(routingKey, "failed").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("email sent successfully", slog.String("to", to), slog.String("subject", subject))
	metrics.NotificationsSent.WithLabelValues(routingKey, "sent").Inc()
	return nil
}

func (s *Service) paymentEmail(routingKey string, e models.PaymentEvent) (to, subject, text string) {
	amount := e.Amount.StringFixed(2)
	plan := strings.ToUpper(e.Plan)

	switch routingKey {
	case rabbitmq.RoutingPaymentRequested:
		return s.adminEmail,
			"Nueva solicitud de pago " + e.Code,
			fmt.Sprintf("%s (%s) solicitó el plan %s por %s.\n\nCódigo: %s\n\nVerifica el comprobante en el panel de administración.",
				e.Name, e.Email, plan, amount, e.Code)
	case rabbitmq.RoutingPaymentVerified:
		until := ""
		if e.ExpiresAt != nil {
			until = " hasta el " + e.ExpiresAt.Format("02/01/2006")
		}
		return e.Email,
			"Pago verificado",
			fmt.Sprintf("Hola %s!\n\nTu pago %s fue verificado. El plan %s está activo%s.\n\n¡Gracias por usar RedCajeros!",
				e.Name, e.Code, plan, until)
	default:
		return e.Email,
			"Pago rechazado",
			fmt.Sprintf("Hola %s.\n\nTu pago %s por %s no fue aprobado.\nMotivo: %s\n\nSi crees que es un error, contáctanos por WhatsApp.",
				e.Name, e.Code, amount, e.Reason)
	}
}

func expiringEmail(e models.ExpiringEvent) (to, subject, text string) {
	left := time.Until(e.ExpiresAt).Round(time.Hour)
	return e.Email,
		"Tu suscripción a RedCajeros está por vencer",
		fmt.Sprintf("Hola %s!\n\nTu plan %s vence el %s (en %s aprox.).\n\nRenueva desde la sección de pagos para no perder el acceso de escritura.",
			e.Name, strings.ToUpper(e.Plan), e.ExpiresAt.Format("02/01/2006 15:04"), left)
}
