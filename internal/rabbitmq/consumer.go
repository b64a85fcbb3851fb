package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
)

const prefetch = 10

// Handler обрабатывает тело сообщения. Ключ маршрутизации позволяет
// одной очереди принимать несколько видов событий. ctx отменяется при остановке потребителя.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// ConsumerMessage запускает чтение очереди. Сообщения обрабатываются параллельно,
// не более prefetch одновременно. Сообщение с ошибкой возвращается в очередь один раз,
// повторная ошибка отбрасывает его.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string, handler Handler) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queueName))
	sem := make(chan struct{}, prefetch)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					if err := handler(ctx, d.RoutingKey, d.Body); err != nil {
						log.Error("failed to handle message", slog.String("routing_key", d.RoutingKey), sl.Err(err))
						if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
