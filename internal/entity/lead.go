package entity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

var (
	ErrLeadNotFound       = errors.New("lead not found")
	ErrAlreadyQueued      = errors.New("email already queued for this dedupe key")
	ErrEmailUndeliverable = errors.New("email undeliverable")
)

// Lead is a visitor's contact submission before purchase.
type Lead struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Source      string   `json:"source"`
	SourcePage  string   `json:"source_page,omitempty"`
	IntentPlan  string   `json:"intent_plan,omitempty"` // usb_500, plan_annual, ...
	FunnelStep  string   `json:"funnel_step,omitempty"` // pre_checkout, decision, ...
	Tags        []string `json:"tags,omitempty"`
	CountryCode string   `json:"country_code,omitempty"`
	CountryName string   `json:"country_name,omitempty"`

	ConsentTransactional   bool       `json:"consent_transactional"`
	ConsentTransactionalAt *time.Time `json:"consent_transactional_at,omitempty"`
	ConsentMarketing       bool       `json:"consent_marketing"`
	ConsentMarketingAt     *time.Time `json:"consent_marketing_at,omitempty"`

	SubscriberID string     `json:"subscriber_id,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone trims and removes every internal whitespace rune.
func NormalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}

func (l *Lead) Normalize() {
	l.Name = strings.TrimSpace(l.Name)
	l.Email = NormalizeEmail(l.Email)
	l.Phone = NormalizePhone(l.Phone)
}

func (l *Lead) HasTag(tag string) bool {
	return slices.Contains(l.Tags, tag)
}

func (l *Lead) IsPaid() bool {
	return l.PaidAt != nil
}

type LeadRepositoryInterface interface {
	// Insert writes the lead. When includeConsent is false the consent
	// columns are left out of the statement entirely.
	Insert(ctx context.Context, lead *Lead, includeConsent bool) error
	FindAbandonedCartCandidates(ctx context.Context, filter AbandonedCartFilter) ([]*Lead, error)
	AppendTag(ctx context.Context, leadID, tag string) error
}
