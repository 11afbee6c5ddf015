package entity

import (
	"context"
	"strings"
	"time"
)

const (
	AbandonedCartTag         = "abandoned_cart_emailed"
	AbandonedCartTemplateKey = "abandoned_cart"
)

// AbandonedCartFilter describes the coarse storage-level selection of unpaid
// leads. Tag dedupe is applied afterwards by the sweeper.
type AbandonedCartFilter struct {
	IntentPattern     string   // SQL LIKE pattern, e.g. "usb%"
	TestEmailPatterns []string // SQL LIKE patterns excluded from results
	CreatedAfter      time.Time
	CreatedBefore     time.Time
	Limit             int
}

// AbandonedCartWindow holds the age bounds of a recoverable cart.
type AbandonedCartWindow struct {
	MinAge time.Duration
	MaxAge time.Duration
}

func DefaultAbandonedCartWindow() AbandonedCartWindow {
	return AbandonedCartWindow{MinAge: 30 * time.Minute, MaxAge: 48 * time.Hour}
}

// Filter converts the window into absolute bounds relative to now.
func (w AbandonedCartWindow) Filter(now time.Time, intentPattern string, limit int) AbandonedCartFilter {
	return AbandonedCartFilter{
		IntentPattern: intentPattern,
		CreatedAfter:  now.Add(-w.MaxAge),
		CreatedBefore: now.Add(-w.MinAge),
		Limit:         limit,
	}
}

// Eligible reports whether the lead is an abandoned cart at instant now.
// intentPrefix is the literal prefix of the product-intent pattern.
func (w AbandonedCartWindow) Eligible(l *Lead, now time.Time, intentPrefix string) bool {
	if l.IsPaid() || l.HasTag(AbandonedCartTag) {
		return false
	}
	if !strings.HasPrefix(l.IntentPlan, intentPrefix) {
		return false
	}
	age := now.Sub(l.CreatedAt)
	return age >= w.MinAge && age <= w.MaxAge
}

// AbandonedCartDedupeKey is deterministic per lead so a recovery email is
// never queued twice.
func AbandonedCartDedupeKey(leadID string) string {
	return AbandonedCartTemplateKey + ":" + leadID
}

// QueuedEmail is a row of the recovery e-mail queue.
type QueuedEmail struct {
	ID          int64          `json:"id"`
	LeadID      string         `json:"lead_id"`
	To          string         `json:"to"`
	TemplateKey string         `json:"template_key"`
	Subject     string         `json:"subject"`
	Lang        string         `json:"lang"`
	Payload     map[string]any `json:"payload"`
	DedupeKey   string         `json:"dedupe_key"`
	Status      string         `json:"status"` // PENDING, SENT, FAILED
	Attempts    int            `json:"attempts"`
	CreatedAt   time.Time      `json:"created_at"`
}

type EmailQueueRepositoryInterface interface {
	// Enqueue returns ErrAlreadyQueued when the dedupe key already exists.
	Enqueue(ctx context.Context, email *QueuedEmail) error
	FetchPending(ctx context.Context, limit int) ([]*QueuedEmail, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	// MarkDead parks the row as FAILED without further attempts.
	MarkDead(ctx context.Context, id int64, reason string) error
}
