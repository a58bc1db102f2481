package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aq2208/gorder-storefront/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange        = "order.events"
	OrderCreatedQueue      = "order.created.q"
	orderCreatedRoutingKey = usecase.ChannelOrderCreated
)

// ErrNacked is returned when the broker refuses a confirmed publish.
var ErrNacked = errors.New("publish nacked by broker")

// RabbitProducer publishes outbox messages to a topic exchange with
// publisher confirms. Outbox channels are used as routing keys.
type RabbitProducer struct {
	ch       *amqp.Channel
	exchange string
}

// NewRabbitProducer sets up the exchange, queue, and binding once at startup.
func NewRabbitProducer(ch *amqp.Channel, exchange string) (*RabbitProducer, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	// 1. declare exchange (topic type, durable)
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	// 2. declare queue
	q, err := ch.QueueDeclare(
		OrderCreatedQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	// 3. bind queue → exchange
	if err := ch.QueueBind(
		q.Name,
		orderCreatedRoutingKey,
		exchange,
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	// 4. publisher confirms; Publish waits for them
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitProducer{ch: ch, exchange: exchange}, nil
}

// Publish sends body under routingKey and waits for the broker's confirm.
// messageID lets consumers drop redeliveries.
func (p *RabbitProducer) Publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    messageID,
		Body:         body,
	}

	conf, err := p.ch.PublishWithDeferredConfirmWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		pub,
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if conf == nil {
		return nil
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirm: %w", err)
	}
	if !acked {
		return ErrNacked
	}
	return nil
}

var _ Publisher = (*RabbitProducer)(nil)
