package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"gravecare-api/models"
)

// RoutingKeyOrderCreated is the routing key of order notification events.
const RoutingKeyOrderCreated = "order.created"

// AMQPPublisher queues orders on a RabbitMQ topic exchange for cmd/notifier.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, ch, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Enqueue publishes order as a persistent JSON message.
func (p *AMQPPublisher) Enqueue(ctx context.Context, order models.Order) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyOrderCreated, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    order.ID.Hex(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish order: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return closeAll(p.ch, p.conn)
}

// AMQPConsumer reads queued orders and sends their notifications.
type AMQPConsumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewAMQPConsumer(url, exchange, queue string, prefetch int) (*AMQPConsumer, error) {
	conn, ch, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = closeAll(ch, conn)
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKeyOrderCreated, exchange, false, nil); err != nil {
		_ = closeAll(ch, conn)
		return nil, fmt.Errorf("bind %s: %w", RoutingKeyOrderCreated, err)
	}
	if prefetch <= 0 {
		prefetch = 8
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = closeAll(ch, conn)
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &AMQPConsumer{conn: conn, ch: ch, queue: q.Name}, nil
}

// Run consumes until ctx is done or the channel closes. Failed sends are
// logged and acknowledged; notifications are not retried.
func (c *AMQPConsumer) Run(ctx context.Context, sender Sender, timeout time.Duration, log logrus.FieldLogger) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			handleDelivery(ctx, d, sender, timeout, log)
		}
	}
}

// acknowledger is the part of amqp.Delivery the handler needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, d amqp.Delivery, sender Sender, timeout time.Duration, log logrus.FieldLogger) {
	handleMessage(ctx, d.Body, d, sender, timeout, log)
}

func handleMessage(ctx context.Context, body []byte, ack acknowledger, sender Sender, timeout time.Duration, log logrus.FieldLogger) {
	var order models.Order
	if err := json.Unmarshal(body, &order); err != nil {
		log.WithError(err).Error("drop malformed order message")
		_ = ack.Nack(false, false)
		return
	}

	entry := log.WithFields(logrus.Fields{"order_id": order.ID.Hex(), "user_id": order.UserID.Hex()})
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sender.Send(sendCtx, order); err != nil {
		entry.WithError(err).Error("order notification failed")
	} else {
		entry.Info("order notification sent")
	}
	_ = ack.Ack(false)
}

func (c *AMQPConsumer) Close() error {
	return closeAll(c.ch, c.conn)
}

func dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = closeAll(ch, conn)
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return conn, ch, nil
}

func closeAll(ch *amqp.Channel, conn *amqp.Connection) error {
	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
