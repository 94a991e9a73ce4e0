package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 3 * time.Second

// publisher is the subset of *amqp.Channel RabbitNotifier uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitNotifier publishes messages as JSON to a topic exchange. A separate
// mail worker consumes "email.*" and does the SMTP delivery.
type RabbitNotifier struct {
	conn     *amqp.Connection
	ch       publisher
	exchange string
	now      func() time.Time
}

func NewRabbitNotifier(url, exchange string) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: opening channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: declaring exchange %q: %w", exchange, err)
	}

	return &RabbitNotifier{conn: conn, ch: ch, exchange: exchange, now: time.Now}, nil
}

// RoutingKey is the topic a message of the given kind is published under.
func RoutingKey(kind Kind) string {
	return "email." + string(kind)
}

func (n *RabbitNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > publishTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}

	err = n.ch.PublishWithContext(ctx, n.exchange, RoutingKey(msg.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		MessageId:    uuid.NewString(),
		Timestamp:    n.now(),
	})
	if err != nil {
		return fmt.Errorf("notify: publishing %s: %w", msg.Kind, err)
	}
	return nil
}

func (n *RabbitNotifier) Close() error {
	if n == nil {
		return nil
	}
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
