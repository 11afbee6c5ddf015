package worker

import (
	"context"
	"log"
	"time"

	"github.com/xavierca1/dj-funnel/internal/infra/http/middleware"
	"github.com/xavierca1/dj-funnel/internal/infra/lock"
	"github.com/xavierca1/dj-funnel/internal/usecase"
)

type Sweeper interface {
	Execute(ctx context.Context, dryRun bool) (*usecase.SweepSummary, error)
}

// AbandonedCartWorker runs the sweeper on a fixed interval. The lock keeps
// overlapping runs from several instances apart.
type AbandonedCartWorker struct {
	sweeper      Sweeper
	lock         lock.Locker
	tickInterval time.Duration
}

func NewAbandonedCartWorker(sweeper Sweeper, l lock.Locker, interval time.Duration) *AbandonedCartWorker {
	if l == nil {
		l = lock.NoopLock{}
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &AbandonedCartWorker{
		sweeper:      sweeper,
		lock:         l,
		tickInterval: interval,
	}
}

func (w *AbandonedCartWorker) Start(ctx context.Context) {
	log.Printf("🛒 Abandoned cart worker started (every %s)", w.tickInterval)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Abandoned cart worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce returns nil when another instance holds the lock.
func (w *AbandonedCartWorker) RunOnce(ctx context.Context) *usecase.SweepSummary {
	acquired, err := w.lock.Acquire(ctx)
	if err != nil {
		log.Printf("❌ [SWEEP] lock unavailable, skipping run: %v", err)
		return nil
	}
	if !acquired {
		log.Println("⏭️ [SWEEP] another instance is sweeping, skipping")
		return nil
	}
	defer func() {
		if err := w.lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Printf("⚠️ [SWEEP] release lock: %v", err)
		}
	}()

	summary, err := w.sweeper.Execute(ctx, false)
	if err != nil {
		log.Printf("❌ [SWEEP] run failed: %v", err)
		middleware.RecordIntegrationError("sweeper")
		return summary
	}

	middleware.RecordAbandonedCartSweep(summary.Notified, summary.Errors)
	return summary
}
