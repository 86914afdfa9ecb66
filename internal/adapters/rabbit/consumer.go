package rabbit

import (
	"context"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	ch    *amqp.Channel
	queue string
}

// NewConsumer declares queue bound to routingKey on the events exchange.
// Rejected deliveries are dead-lettered to <queue>.dlq.
func NewConsumer(conn *amqp.Connection, queue, routingKey string, prefetch int) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, errors.Wrap(err, "declare exchange")
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, "direct", true, false, false, false, nil); err != nil {
		return nil, errors.Wrap(err, "declare dead-letter exchange")
	}

	dlq := queue + ".dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return nil, errors.Wrap(err, "declare dead-letter queue")
	}
	if err := ch.QueueBind(dlq, queue, DeadLetterExchange, false, nil); err != nil {
		return nil, errors.Wrap(err, "bind dead-letter queue")
	}

	_, err = ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": queue,
	})
	if err != nil {
		return nil, errors.Wrap(err, "declare queue")
	}
	if err := ch.QueueBind(queue, routingKey, Exchange, false, nil); err != nil {
		return nil, errors.Wrap(err, "bind queue")
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, errors.Wrap(err, "set prefetch")
	}
	return &Consumer{ch: ch, queue: queue}, nil
}

func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}

// Redrive moves up to limit dead-lettered messages back onto the events
// exchange under routingKey and returns how many were moved.
func (c *Consumer) Redrive(ctx context.Context, pub *Publisher, routingKey string, limit int) (int, error) {
	moved := 0
	for moved < limit {
		d, ok, err := c.ch.Get(c.queue+".dlq", false)
		if err != nil {
			return moved, errors.Wrap(err, "get dead-lettered message")
		}
		if !ok {
			return moved, nil
		}
		err = pub.Publish(ctx, routingKey, amqp.Publishing{
			MessageId:    d.MessageId,
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         d.Body,
		})
		if err != nil {
			d.Nack(false, true)
			return moved, errors.Wrapf(err, "republish %s", d.MessageId)
		}
		d.Ack(false)
		moved++
	}
	return moved, nil
}
