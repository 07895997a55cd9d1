package rabbit

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const ConfirmationQueue = "vendors.confirmations"

type Consumer struct {
	ch    *amqp.Channel
	queue string
}

// NewConsumer declares queue, binds it to the events exchange under routingKey and
// limits unacked deliveries to one.
func NewConsumer(conn *amqp.Connection, queue, routingKey string) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.QueueBind(queue, routingKey, Exchange, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, err
	}
	return &Consumer{ch: ch, queue: queue}, nil
}

func (c *Consumer) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(c.queue, consumerTag, false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
