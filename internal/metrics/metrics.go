// Package metrics регистрирует прикладные метрики Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "redcajeros"

var (
	// ChargesCreated записи журнала по виду (charge, debt).
	ChargesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "charges_created_total",
		Help:      "Total number of ledger charges created",
	}, []string{"type"})

	// SettlementsRecorded расчёты по ветке распределения.
	SettlementsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "settlements_recorded_total",
		Help:      "Total number of settlements recorded",
	}, []string{"branch"})

	// ChargesSettled количество записей, помеченных оплаченными.
	ChargesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "charges_settled_total",
		Help:      "Total number of charges marked paid by settlements",
	})

	// PaymentRequests переходы заявок на оплату.
	PaymentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "payment_requests_total",
		Help:      "Payment requests by resulting status",
	}, []string{"status"})

	// NotificationsSent письма, отправленные обработчиком уведомлений.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "sent_total",
		Help:      "Notification emails by routing key and result",
	}, []string{"routing_key", "result"})
)

// ChargeType метка для ChargesCreated.
func ChargeType(isDebt bool) string {
	if isDebt {
		return "debt"
	}
	return "charge"
}
