// ABOUTME: Publishes booking notifications as JSON events on a RabbitMQ topic exchange
// ABOUTME: Downstream mailers or webhooks consume booking.* routing keys
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/consult/models"
	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp.Channel the notifier uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Event is the JSON body of a published notification.
type Event struct {
	ID            string                      `json:"id"`
	Type          string                      `json:"type"`
	Template      models.NotificationTemplate `json:"template"`
	Recipient     string                      `json:"recipient"`
	Subject       string                      `json:"subject"`
	Body          string                      `json:"body"`
	Booking       models.Booking              `json:"booking"`
	PreviousStart *time.Time                  `json:"previous_start,omitempty"`
	OccurredAt    time.Time                   `json:"occurred_at"`
}

var routingKeys = map[models.NotificationTemplate]string{
	models.TemplateConfirmation: "booking.created",
	models.TemplateRescheduled:  "booking.rescheduled",
	models.TemplateCancelled:    "booking.cancelled",
}

// RoutingKey is the topic a notification is published under.
func RoutingKey(t models.NotificationTemplate) string {
	if key, ok := routingKeys[t]; ok {
		return key
	}
	return "booking." + string(t)
}

type AMQPNotifier struct {
	pub      Publisher
	exchange string
	now      func() time.Time
	close    func() error
}

// NewAMQPNotifier publishes through an existing channel. Close is a no-op.
func NewAMQPNotifier(pub Publisher, exchange string) *AMQPNotifier {
	return &AMQPNotifier{pub: pub, exchange: exchange, now: time.Now, close: func() error { return nil }}
}

// DialAMQP connects to url and declares exchange as a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	n := NewAMQPNotifier(ch, exchange)
	n.close = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return n, nil
}

func (a *AMQPNotifier) Send(ctx context.Context, n models.Notification) error {
	msg, err := Render(n)
	if err != nil {
		return err
	}

	now := a.now().UTC()
	key := RoutingKey(n.Template)
	event := Event{
		ID:            ulid.Make().String(),
		Type:          key,
		Template:      n.Template,
		Recipient:     msg.To,
		Subject:       msg.Subject,
		Body:          msg.Body,
		Booking:       n.Booking,
		PreviousStart: n.PreviousStart,
		OccurredAt:    now,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	err = a.pub.PublishWithContext(ctx, a.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    now,
		Type:         key,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (a *AMQPNotifier) Close() error {
	return a.close()
}
