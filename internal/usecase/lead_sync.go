package usecase

import (
	"context"
	"log"
	"time"
)

const leadSyncTimeout = 15 * time.Second

// fireLeadSync runs the sync in the background. The result never reaches the
// caller; failures are only logged.
func fireLeadSync(ctx context.Context, syncer LeadSyncer, leadID, reason string) {
	if syncer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leadSyncTimeout)
		defer cancel()

		if err := syncer.SyncLead(ctx, leadID); err != nil {
			log.Printf("⚠️ [SYNC] %s for lead %s failed (ignored): %v", reason, leadID, err)
			return
		}
		log.Printf("🔄 [SYNC] %s dispatched for lead %s", reason, leadID)
	}()
}
