package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/xavierca1/dj-funnel/internal/entity"
	"github.com/xavierca1/dj-funnel/internal/infra/http/middleware"
)

type EmailSender interface {
	Send(ctx context.Context, e *entity.QueuedEmail) error
}

// EmailDispatchWorker drains the email queue.
type EmailDispatchWorker struct {
	queue        entity.EmailQueueRepositoryInterface
	sender       EmailSender
	batchSize    int
	tickInterval time.Duration
}

func NewEmailDispatchWorker(queue entity.EmailQueueRepositoryInterface, sender EmailSender) *EmailDispatchWorker {
	return &EmailDispatchWorker{
		queue:        queue,
		sender:       sender,
		batchSize:    25,
		tickInterval: time.Minute,
	}
}

func (w *EmailDispatchWorker) Start(ctx context.Context) {
	log.Println("📧 Email dispatch worker started")

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.Dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Email dispatch worker stopped")
			return
		case <-ticker.C:
			w.Dispatch(ctx)
		}
	}
}

// Dispatch sends one batch and returns how many were delivered.
func (w *EmailDispatchWorker) Dispatch(ctx context.Context) int {
	emails, err := w.queue.FetchPending(ctx, w.batchSize)
	if err != nil {
		log.Printf("❌ [MAIL] fetch pending: %v", err)
		return 0
	}

	// Status updates must land even when ctx is cancelled mid-batch.
	markCtx := context.WithoutCancel(ctx)

	sent := 0
	for _, e := range emails {
		if err := w.sender.Send(ctx, e); err != nil {
			log.Printf("❌ [MAIL] email %d to %s failed (attempt %d): %v", e.ID, e.To, e.Attempts, err)
			middleware.RecordEmail(e.TemplateKey, "failed")
			mark := w.queue.MarkFailed
			if errors.Is(err, entity.ErrEmailUndeliverable) {
				mark = w.queue.MarkDead
			}
			if err := mark(markCtx, e.ID, err.Error()); err != nil {
				log.Printf("⚠️ [MAIL] mark %d failed: %v", e.ID, err)
			}
			continue
		}

		middleware.RecordEmail(e.TemplateKey, "sent")
		if err := w.queue.MarkSent(markCtx, e.ID); err != nil {
			log.Printf("⚠️ [MAIL] mark %d sent: %v", e.ID, err)
		}
		sent++
	}

	if sent > 0 {
		log.Printf("✅ [MAIL] %d email(s) sent", sent)
	}
	return sent
}
