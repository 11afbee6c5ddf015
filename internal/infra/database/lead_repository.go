package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/xavierca1/dj-funnel/internal/entity"
)

type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

const insertLeadWithConsent = `
	INSERT INTO leads (
		id, name, email, phone, source, source_page, intent_plan, funnel_step,
		tags, country_code, country_name,
		consent_transactional, consent_transactional_at,
		consent_marketing, consent_marketing_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

const insertLead = `
	INSERT INTO leads (
		id, name, email, phone, source, source_page, intent_plan, funnel_step,
		tags, country_code, country_name
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

func (r *LeadRepository) Insert(ctx context.Context, lead *entity.Lead, includeConsent bool) error {
	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}

	args := []any{
		lead.ID,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Source,
		nullString(lead.SourcePage),
		nullString(lead.IntentPlan),
		nullString(lead.FunnelStep),
		pq.Array(tags),
		nullString(lead.CountryCode),
		nullString(lead.CountryName),
	}

	query := insertLead
	if includeConsent {
		query = insertLeadWithConsent
		args = append(args,
			lead.ConsentTransactional,
			lead.ConsentTransactionalAt,
			lead.ConsentMarketing,
			lead.ConsentMarketingAt,
		)
	}

	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert lead %s: %w", lead.ID, err)
	}
	return nil
}

// FindAbandonedCartCandidates applies the coarse window. Tag containment is
// left to the caller.
func (r *LeadRepository) FindAbandonedCartCandidates(ctx context.Context, f entity.AbandonedCartFilter) ([]*entity.Lead, error) {
	query := `
		SELECT id, name, email, phone, intent_plan, tags, country_code,
		       subscriber_id, paid_at, created_at
		FROM leads
		WHERE paid_at IS NULL
		  AND intent_plan LIKE $1
		  AND created_at >= $2
		  AND created_at <= $3
		  AND NOT (email LIKE ANY($4))
		ORDER BY created_at
		LIMIT $5
	`

	patterns := f.TestEmailPatterns
	if patterns == nil {
		patterns = []string{}
	}

	rows, err := r.DB.QueryContext(ctx, query,
		f.IntentPattern, f.CreatedAfter, f.CreatedBefore, pq.Array(patterns), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("query abandoned carts: %w", err)
	}
	defer rows.Close()

	var leads []*entity.Lead
	for rows.Next() {
		var (
			l            entity.Lead
			phone        sql.NullString
			intentPlan   sql.NullString
			countryCode  sql.NullString
			subscriberID sql.NullString
			paidAt       sql.NullTime
		)
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Email, &phone, &intentPlan, pq.Array(&l.Tags),
			&countryCode, &subscriberID, &paidAt, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}

		l.Phone = phone.String
		l.IntentPlan = intentPlan.String
		l.CountryCode = countryCode.String
		l.SubscriberID = subscriberID.String
		if paidAt.Valid {
			t := paidAt.Time
			l.PaidAt = &t
		}
		leads = append(leads, &l)
	}

	return leads, rows.Err()
}

// AppendTag is idempotent: an already present tag leaves the row untouched.
func (r *LeadRepository) AppendTag(ctx context.Context, leadID, tag string) error {
	query := `
		UPDATE leads
		SET tags = CASE
			WHEN $2::text = ANY(COALESCE(tags, '{}')) THEN tags
			ELSE array_append(COALESCE(tags, '{}'), $2::text)
		END
		WHERE id = $1
	`

	res, err := r.DB.ExecContext(ctx, query, leadID, tag)
	if err != nil {
		return fmt.Errorf("append tag %s to %s: %w", tag, leadID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrLeadNotFound
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
