package usecase

import (
	"context"

	"github.com/xavierca1/dj-funnel/internal/infra/integration/payments"
)

// LeadSyncer pushes a lead to the messaging platform (ManyChat). Callers
// treat it as best-effort.
type LeadSyncer interface {
	SyncLead(ctx context.Context, leadID string) error
}

type PaymentGateway interface {
	VerifyStripe(ctx context.Context, input payments.VerifyStripeInput) (*payments.VerifyStripeOutput, error)
	CapturePayPal(ctx context.Context, input payments.CapturePayPalInput) (*payments.CapturePayPalOutput, error)
}
