// Package amqp provides a RabbitMQ-backed notify.Notifier for multi-process
// deployments: publishing a job type broadcasts it over a fanout exchange
// so every worker process sharing the exchange wakes promptly instead of
// waiting out its idle-poll sleep.
package amqp

import (
	"context"
	"fmt"

	rabbitmq "github.com/rabbitmq/amqp091-go"

	"github.com/joblet/joblet/notify"
)

// Notifier publishes and consumes job-type wake-up signals over a
// RabbitMQ fanout exchange. It satisfies notify.Notifier.
type Notifier struct {
	conn     *rabbitmq.Connection
	ch       *rabbitmq.Channel
	exchange string
}

// Dial connects to url and declares exchange as a durable fanout
// exchange used to broadcast wake-up signals.
func Dial(url, exchange string) (*Notifier, error) {
	conn, err := rabbitmq.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify/amqp: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("notify/amqp: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, fmt.Errorf("notify/amqp: declare exchange: %w", err)
	}

	return &Notifier{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish broadcasts jobType to every process listening on this
// Notifier's exchange.
func (n *Notifier) Publish(ctx context.Context, jobType string) error {
	return n.ch.PublishWithContext(ctx, n.exchange, "", false, false, rabbitmq.Publishing{
		ContentType: "text/plain",
		Body:        []byte(jobType),
	})
}

// Listen declares an exclusive, auto-deleting queue bound to the
// exchange and streams delivery bodies as job type strings until ctx is
// done.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	q, err := n.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("notify/amqp: declare queue: %w", err)
	}

	if err := n.ch.QueueBind(q.Name, "", n.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("notify/amqp: bind queue: %w", err)
	}

	deliveries, err := n.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("notify/amqp: consume: %w", err)
	}

	out := make(chan string, 8)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				select {
				case out <- string(d.Body):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close tears down the channel and connection.
func (n *Notifier) Close() error {
	_ = n.ch.Close()

	return n.conn.Close()
}

var _ notify.Notifier = (*Notifier)(nil)
