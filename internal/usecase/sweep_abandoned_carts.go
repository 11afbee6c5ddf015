package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/xavierca1/dj-funnel/internal/entity"
)

const (
	DefaultIntentPrefix = "usb"
	DefaultSweepLimit   = 200
)

// DefaultTestEmailPatterns are SQL LIKE patterns for synthetic addresses.
var DefaultTestEmailPatterns = []string{"%@example.%", "%@test.%", "test%@%", "%+test@%"}

var spanishCountries = []string{
	"AR", "BO", "CL", "CO", "CR", "CU", "DO", "EC", "ES", "GT", "HN",
	"MX", "NI", "PA", "PE", "PR", "PY", "SV", "UY", "VE",
}

var recoverySubjects = map[string]string{
	"es": "Tu USB de DJ te está esperando",
	"en": "Your DJ USB is still waiting for you",
}

type SweepSummary struct {
	Found         int      `json:"found"`
	Eligible      int      `json:"eligible"`
	Notified      int      `json:"notified"`
	AlreadyQueued int      `json:"already_queued"`
	Errors        int      `json:"errors"`
	ErrorDetails  []string `json:"error_details,omitempty"`
	DryRun        bool     `json:"dry_run"`
}

func (s *SweepSummary) addError(leadID string, err error) {
	s.Errors++
	s.ErrorDetails = append(s.ErrorDetails, fmt.Sprintf("%s: %v", leadID, err))
}

type SweepAbandonedCartsUseCase struct {
	LeadRepo          entity.LeadRepositoryInterface
	EmailQueue        entity.EmailQueueRepositoryInterface
	Syncer            LeadSyncer
	Window            entity.AbandonedCartWindow
	IntentPrefix      string
	TestEmailPatterns []string
	Limit             int
	CheckoutURL       string
	Now               func() time.Time
}

func NewSweepAbandonedCartsUseCase(
	leadRepo entity.LeadRepositoryInterface,
	emailQueue entity.EmailQueueRepositoryInterface,
	syncer LeadSyncer,
	checkoutURL string,
) *SweepAbandonedCartsUseCase {
	return &SweepAbandonedCartsUseCase{
		LeadRepo:          leadRepo,
		EmailQueue:        emailQueue,
		Syncer:            syncer,
		Window:            entity.DefaultAbandonedCartWindow(),
		IntentPrefix:      DefaultIntentPrefix,
		TestEmailPatterns: DefaultTestEmailPatterns,
		Limit:             DefaultSweepLimit,
		CheckoutURL:       checkoutURL,
		Now:               time.Now,
	}
}

// Execute runs one sweep. Only a failed candidate query aborts the run;
// per-lead problems end up in the summary.
func (uc *SweepAbandonedCartsUseCase) Execute(ctx context.Context, dryRun bool) (*SweepSummary, error) {
	now := uc.Now()
	summary := &SweepSummary{DryRun: dryRun}

	filter := uc.Window.Filter(now, uc.IntentPrefix+"%", uc.Limit)
	filter.TestEmailPatterns = uc.TestEmailPatterns

	leads, err := uc.LeadRepo.FindAbandonedCartCandidates(ctx, filter)
	if err != nil {
		return summary, &TechnicalError{
			Code:    "DATABASE_ERROR",
			Message: "failed to load abandoned cart candidates: " + err.Error(),
			Err:     err,
		}
	}
	summary.Found = len(leads)

	for _, lead := range leads {
		if ctx.Err() != nil {
			summary.addError(lead.ID, ctx.Err())
			break
		}
		// tag containment is the dedupe source of truth
		if !uc.Window.Eligible(lead, now, uc.IntentPrefix) {
			continue
		}
		summary.Eligible++

		if dryRun {
			continue
		}
		uc.notify(ctx, lead, summary)
	}

	log.Printf("🛒 [SWEEP] found=%d eligible=%d notified=%d already_queued=%d errors=%d",
		summary.Found, summary.Eligible, summary.Notified, summary.AlreadyQueued, summary.Errors)
	return summary, nil
}

func (uc *SweepAbandonedCartsUseCase) notify(ctx context.Context, lead *entity.Lead, summary *SweepSummary) {
	lang := languageFor(lead.CountryCode)

	email := &entity.QueuedEmail{
		LeadID:      lead.ID,
		To:          lead.Email,
		TemplateKey: entity.AbandonedCartTemplateKey,
		Subject:     recoverySubjects[lang],
		Lang:        lang,
		Payload: map[string]any{
			"name":         firstName(lead.Name),
			"product":      lead.IntentPlan,
			"checkout_url": uc.checkoutLink(lead),
		},
		DedupeKey: entity.AbandonedCartDedupeKey(lead.ID),
	}

	if err := uc.EmailQueue.Enqueue(ctx, email); err != nil {
		if errors.Is(err, entity.ErrAlreadyQueued) {
			summary.AlreadyQueued++
			return
		}
		summary.addError(lead.ID, fmt.Errorf("enqueue: %w", err))
		return
	}
	summary.Notified++

	if err := uc.LeadRepo.AppendTag(ctx, lead.ID, entity.AbandonedCartTag); err != nil {
		summary.addError(lead.ID, fmt.Errorf("tag: %w", err))
	}

	if lead.SubscriberID != "" && uc.Syncer != nil {
		syncCtx, cancel := context.WithTimeout(ctx, leadSyncTimeout)
		if err := uc.Syncer.SyncLead(syncCtx, lead.ID); err != nil {
			log.Printf("⚠️ [SWEEP] re-sync of %s failed (ignored): %v", lead.ID, err)
		}
		cancel()
	}
}

func (uc *SweepAbandonedCartsUseCase) checkoutLink(lead *entity.Lead) string {
	if uc.CheckoutURL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(uc.CheckoutURL, "?") {
		sep = "&"
	}
	return uc.CheckoutURL + sep + "lead_id=" + lead.ID + "&utm_source=abandoned_cart"
}

func languageFor(countryCode string) string {
	if slices.Contains(spanishCountries, strings.ToUpper(countryCode)) {
		return "es"
	}
	return "en"
}

func firstName(name string) string {
	if parts := strings.Fields(name); len(parts) > 0 {
		return parts[0]
	}
	return ""
}
