package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// SyncClient pushes a stored lead to the messaging platform.
type SyncClient interface {
	SyncLead(ctx context.Context, leadID string) error
}

// Acknowledger is the part of amqp.Delivery the worker settles.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type Worker struct {
	Channel *amqp.Channel
	Client  SyncClient
	// OnFailure is invoked for every delivery that ends in the DLQ.
	OnFailure func(leadID string, err error)
}

func NewWorker(ch *amqp.Channel, client SyncClient) *Worker {
	return &Worker{Channel: ch, Client: client}
}

// Start consumes until ctx is cancelled or the channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.ConsumeWithContext(ctx,
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", queueName, err)
	}

	log.Printf("🐇 [LEAD-SYNC] worker consuming '%s'", queueName)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ [LEAD-SYNC] worker stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.handle(ctx, d.Body, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, body []byte, ack Acknowledger) {
	var payload LeadSyncPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.LeadID == "" {
		log.Printf("❌ [LEAD-SYNC] malformed message dropped: %s", body)
		ack.Nack(false, false)
		return
	}

	if err := w.Client.SyncLead(ctx, payload.LeadID); err != nil {
		log.Printf("❌ [LEAD-SYNC] sync of %s failed: %v", payload.LeadID, err)
		if w.OnFailure != nil {
			w.OnFailure(payload.LeadID, err)
		}
		ack.Nack(false, false)
		return
	}

	log.Printf("✅ [LEAD-SYNC] lead %s synced", payload.LeadID)
	ack.Ack(false)
}
