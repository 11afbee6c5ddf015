package usecase

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/xavierca1/dj-funnel/internal/entity"
)

// ConsentColumnPattern matches database errors caused by the consent columns
// not existing yet in the leads table. It is the only error that triggers a
// second insert attempt.
const ConsentColumnPattern = `consent_(transactional|marketing)(_at)?`

var consentColumnRe = regexp.MustCompile(ConsentColumnPattern)

func IsMissingConsentColumn(err error) bool {
	return err != nil && consentColumnRe.MatchString(err.Error())
}

type CreateLeadInput struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Source      string   `json:"source"`
	SourcePage  string   `json:"source_page,omitempty"`
	IntentPlan  string   `json:"intent_plan,omitempty"`
	FunnelStep  string   `json:"funnel_step,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CountryCode string   `json:"country_code,omitempty"`
	CountryName string   `json:"country_name,omitempty"`

	ConsentTransactional bool `json:"consent_transactional"`
	ConsentMarketing     bool `json:"consent_marketing"`
}

type CreateLeadOutput struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

type CreateLeadUseCase struct {
	Repo   entity.LeadRepositoryInterface
	Syncer LeadSyncer
	Now    func() time.Time
}

func NewCreateLeadUseCase(repo entity.LeadRepositoryInterface, syncer LeadSyncer) *CreateLeadUseCase {
	return &CreateLeadUseCase{
		Repo:   repo,
		Syncer: syncer,
		Now:    time.Now,
	}
}

func (uc *CreateLeadUseCase) Execute(ctx context.Context, input CreateLeadInput) (*CreateLeadOutput, error) {
	if validationErrors := ValidateCreateLeadInput(input); len(validationErrors) > 0 {
		msgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			msgs = append(msgs, e.Error())
		}
		return nil, &DomainError{
			Code:    "VALIDATION_ERROR",
			Message: "validation failed: " + strings.Join(msgs, ", "),
			Fields:  validationErrors,
		}
	}

	lead := uc.buildLead(input)

	if err := uc.Repo.Insert(ctx, lead, true); err != nil {
		if !IsMissingConsentColumn(err) {
			return nil, &TechnicalError{
				Code:    "DATABASE_ERROR",
				Message: "failed to persist lead: " + err.Error(),
				Err:     err,
			}
		}

		log.Printf("⚠️ [LEAD] consent columns missing, retrying %s without consent: %v", lead.ID, err)
		if err := uc.Repo.Insert(ctx, lead, false); err != nil {
			return nil, &TechnicalError{
				Code:    "DATABASE_ERROR",
				Message: "failed to persist lead without consent: " + err.Error(),
				Err:     err,
			}
		}
	}

	log.Printf("✅ [LEAD] %s captured (source=%s, intent=%s)", lead.ID, lead.Source, lead.IntentPlan)

	fireLeadSync(ctx, uc.Syncer, lead.ID, "lead_created")

	return &CreateLeadOutput{ID: lead.ID, Source: lead.Source}, nil
}

func (uc *CreateLeadUseCase) buildLead(input CreateLeadInput) *entity.Lead {
	now := uc.Now()

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "landing"
	}

	lead := &entity.Lead{
		ID:          strings.TrimSpace(input.ID),
		Name:        input.Name,
		Email:       input.Email,
		Phone:       input.Phone,
		Source:      source,
		SourcePage:  input.SourcePage,
		IntentPlan:  input.IntentPlan,
		FunnelStep:  input.FunnelStep,
		Tags:        input.Tags,
		CountryCode: strings.ToUpper(input.CountryCode),
		CountryName: input.CountryName,

		ConsentTransactional: input.ConsentTransactional,
		ConsentMarketing:     input.ConsentMarketing,
		CreatedAt:            now,
	}
	if lead.ConsentTransactional {
		lead.ConsentTransactionalAt = &now
	}
	if lead.ConsentMarketing {
		lead.ConsentMarketingAt = &now
	}
	lead.Normalize()
	return lead
}
