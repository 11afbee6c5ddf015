package usecase

import (
	"context"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xavierca1/dj-funnel/internal/entity"
	"github.com/xavierca1/dj-funnel/internal/infra/integration/payments"
)

const (
	msgPaymentProcessing = "We could not confirm your payment yet. Check your email for the receipt or contact support."
	msgPaymentFailed     = "The payment was not completed. Please try again."
	msgShippingBlocked   = "We cannot ship to this address. Please retry checkout with a valid shipping address."
)

// confirmTimeout bounds one verify/capture call. The call is detached from
// the caller so a disconnecting first request cannot spoil the shared result.
const confirmTimeout = 30 * time.Second

var shippingBlockedCodes = []string{
	payments.CodeShippingCountryNotAllowed,
	payments.CodeShippingAddressInvalid,
}

type ConfirmPaymentInput struct {
	Provider  entity.PaymentProvider `json:"provider"`
	SessionID string                 `json:"session_id,omitempty"`
	OrderID   string                 `json:"order_id,omitempty"`
	LeadID    string                 `json:"lead_id"`
	Product   string                 `json:"product,omitempty"`
}

// ExternalRef is the Stripe session id or the PayPal order id.
func (in ConfirmPaymentInput) ExternalRef() string {
	if in.Provider == entity.ProviderPayPal {
		return in.OrderID
	}
	return in.SessionID
}

func (in ConfirmPaymentInput) key() string {
	return string(in.Provider) + ":" + in.ExternalRef() + "|" + in.LeadID
}

type confirmAttempt struct {
	once      sync.Once
	result    entity.PaymentConfirmation
	createdAt time.Time
}

// PaymentConfirmer verifies a checkout redirect at most once per
// (ref, lead) pair. Concurrent calls share one in-flight attempt. A final
// outcome is reused until it is older than TTL; a pending one is dropped so
// the next call asks the provider again.
type PaymentConfirmer struct {
	Gateway PaymentGateway
	Syncer  LeadSyncer
	TTL     time.Duration
	Now     func() time.Time

	mu       sync.Mutex
	attempts map[string]*confirmAttempt
}

func NewPaymentConfirmer(gateway PaymentGateway, syncer LeadSyncer, ttl time.Duration) *PaymentConfirmer {
	return &PaymentConfirmer{
		Gateway:  gateway,
		Syncer:   syncer,
		TTL:      ttl,
		Now:      time.Now,
		attempts: make(map[string]*confirmAttempt),
	}
}

func (c *PaymentConfirmer) Confirm(ctx context.Context, input ConfirmPaymentInput) (*entity.PaymentConfirmation, error) {
	input.SessionID = strings.TrimSpace(input.SessionID)
	input.OrderID = strings.TrimSpace(input.OrderID)
	input.LeadID = strings.TrimSpace(input.LeadID)

	if errs := validateConfirmPaymentInput(input); len(errs) > 0 {
		return nil, &DomainError{
			Code:    "INVALID_CONFIRMATION_PARAMS",
			Message: "invalid confirmation parameters: " + errs[0].Error(),
			Fields:  errs,
		}
	}

	key := input.key()
	attempt := c.attemptFor(key)
	attempt.once.Do(func() {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmTimeout)
		defer cancel()
		attempt.result = c.confirm(callCtx, input)
	})

	result := attempt.result
	if result.Outcome == entity.OutcomePending {
		c.forget(key, attempt)
	}
	return &result, nil
}

// forget drops a pending attempt unless a newer one already replaced it.
func (c *PaymentConfirmer) forget(key string, attempt *confirmAttempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempts[key] == attempt {
		delete(c.attempts, key)
	}
}

func (c *PaymentConfirmer) attemptFor(key string) *confirmAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempts == nil {
		c.attempts = make(map[string]*confirmAttempt)
	}
	now := c.Now()

	if c.TTL > 0 {
		for k, a := range c.attempts {
			if now.Sub(a.createdAt) > c.TTL {
				delete(c.attempts, k)
			}
		}
	}

	a, ok := c.attempts[key]
	if !ok {
		a = &confirmAttempt{createdAt: now}
		c.attempts[key] = a
	}
	return a
}

func (c *PaymentConfirmer) confirm(ctx context.Context, input ConfirmPaymentInput) entity.PaymentConfirmation {
	var result entity.PaymentConfirmation
	switch input.Provider {
	case entity.ProviderPayPal:
		result = c.capturePayPal(ctx, input)
	default:
		result = c.verifyStripe(ctx, input)
	}

	log.Printf("💳 [CONFIRM] %s %s lead=%s outcome=%s", result.Provider, result.ExternalRef, result.LeadID, result.Outcome)

	if result.Outcome == entity.OutcomeSuccess {
		fireLeadSync(ctx, c.Syncer, input.LeadID, "payment_confirmed")
	}
	return result
}

func (c *PaymentConfirmer) verifyStripe(ctx context.Context, input ConfirmPaymentInput) entity.PaymentConfirmation {
	result := newConfirmation(input)

	out, err := c.Gateway.VerifyStripe(ctx, payments.VerifyStripeInput{
		LeadID:    input.LeadID,
		SessionID: input.SessionID,
		Product:   input.Product,
	})
	if err != nil {
		log.Printf("❌ [CONFIRM] stripe verify for %s failed: %v", input.SessionID, err)
		result.Message = msgPaymentProcessing
		return result
	}

	result.Shipping = shippingFrom(out.Shippo)
	if out.Paid != nil && *out.Paid {
		result.Outcome = entity.OutcomeSuccess
		return result
	}

	result.Code = out.Status
	result.Message = msgPaymentProcessing
	return result
}

func (c *PaymentConfirmer) capturePayPal(ctx context.Context, input ConfirmPaymentInput) entity.PaymentConfirmation {
	result := newConfirmation(input)

	out, err := c.Gateway.CapturePayPal(ctx, payments.CapturePayPalInput{
		LeadID:  input.LeadID,
		OrderID: input.OrderID,
		Product: input.Product,
	})
	if err != nil {
		log.Printf("❌ [CONFIRM] paypal capture for %s failed: %v", input.OrderID, err)
		result.Message = msgPaymentProcessing
		return result
	}

	result.Code = out.Code
	result.Shipping = shippingFrom(out.Shippo)

	switch {
	case slices.Contains(shippingBlockedCodes, out.Code):
		result.Outcome = entity.OutcomeShippingBlocked
		result.Message = msgShippingBlocked
	case out.Completed:
		result.Outcome = entity.OutcomeSuccess
	default:
		result.Outcome = entity.OutcomeFailure
		result.Message = msgPaymentFailed
		if out.Message != "" {
			result.Message = out.Message
		}
	}
	return result
}

func newConfirmation(input ConfirmPaymentInput) entity.PaymentConfirmation {
	return entity.PaymentConfirmation{
		Provider:    input.Provider,
		ExternalRef: input.ExternalRef(),
		LeadID:      input.LeadID,
		Product:     input.Product,
		Outcome:     entity.OutcomePending,
	}
}

// shippingFrom passes label data through; a missing label is normal.
func shippingFrom(s *payments.Shippo) *entity.ShippingInfo {
	if s == nil || (s.LabelURL == "" && s.TrackingNumber == "") {
		return nil
	}
	return &entity.ShippingInfo{LabelURL: s.LabelURL, TrackingNumber: s.TrackingNumber}
}

func validateConfirmPaymentInput(input ConfirmPaymentInput) []ValidationError {
	var errors []ValidationError

	switch input.Provider {
	case entity.ProviderStripe:
		if input.SessionID == "" {
			errors = append(errors, ValidationError{"session_id", "is required for stripe"})
		}
	case entity.ProviderPayPal:
		if input.OrderID == "" {
			errors = append(errors, ValidationError{"order_id", "is required for paypal"})
		}
	default:
		errors = append(errors, ValidationError{"provider", "must be stripe or paypal"})
	}

	if input.LeadID == "" {
		errors = append(errors, ValidationError{"lead_id", "is required"})
	}
	return errors
}
