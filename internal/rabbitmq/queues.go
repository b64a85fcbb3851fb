package rabbitmq

// Ключи маршрутизации событий.
const (
	RoutingPaymentRequested     = "payment.requested"
	RoutingPaymentVerified      = "payment.verified"
	RoutingPaymentRejected      = "payment.rejected"
	RoutingSubscriptionExpiring = "subscription.expiring"
)

// Очереди уведомлений.
const (
	QueuePayments = "notifications.payments"
	QueueExpiring = "notifications.expiring"
)

// QueueConfig очередь и ключи, которыми она привязана к Exchange.
type QueueConfig struct {
	QueueName   string
	RoutingKeys []string
}

// GetNotificationQueues возвращает очереди, которые читает notification-sender.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{
			QueueName:   QueuePayments,
			RoutingKeys: []string{RoutingPaymentRequested, RoutingPaymentVerified, RoutingPaymentRejected},
		},
		{
			QueueName:   QueueExpiring,
			RoutingKeys: []string{RoutingSubscriptionExpiring},
		},
	}
}
