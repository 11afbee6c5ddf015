package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LeadSyncPayload asks the worker to push one lead to ManyChat.
type LeadSyncPayload struct {
	LeadID      string    `json:"lead_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher is the subset of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQProducer satisfies usecase.LeadSyncer by publishing sync requests.
type RabbitMQProducer struct {
	Ch  Publisher
	Now func() time.Time
}

func NewProducer(ch Publisher) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch, Now: time.Now}
}

func (p *RabbitMQProducer) SyncLead(ctx context.Context, leadID string) error {
	body, err := json.Marshal(LeadSyncPayload{LeadID: leadID, RequestedAt: p.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode sync payload: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    leadID,
		},
	)
	if err != nil {
		return fmt.Errorf("publish lead sync %s: %w", leadID, err)
	}
	return nil
}
