package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/xavierca1/dj-funnel/internal/entity"
)

const (
	EmailStatusPending = "PENDING"
	EmailStatusSending = "SENDING"
	EmailStatusSent    = "SENT"
	EmailStatusFailed  = "FAILED"

	// MaxEmailAttempts before a row is parked as FAILED.
	MaxEmailAttempts = 5

	pgUniqueViolation = "23505"
)

// SendingLease is how long a claimed row may stay SENDING before another
// dispatcher takes it back.
var SendingLease = 15 * time.Minute

type EmailQueueRepository struct {
	DB *sql.DB
}

func NewEmailQueueRepository(db *sql.DB) *EmailQueueRepository {
	return &EmailQueueRepository{DB: db}
}

func (r *EmailQueueRepository) Enqueue(ctx context.Context, e *entity.QueuedEmail) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	query := `
		INSERT INTO email_queue (lead_id, to_email, template_key, subject, lang, payload, dedupe_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err = r.DB.QueryRowContext(ctx, query,
		e.LeadID, e.To, e.TemplateKey, e.Subject, e.Lang, payload, e.DedupeKey, EmailStatusPending,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return entity.ErrAlreadyQueued
		}
		return fmt.Errorf("enqueue email %s: %w", e.DedupeKey, err)
	}

	e.Status = EmailStatusPending
	return nil
}

// FetchPending claims up to limit pending rows, moving them to SENDING so a
// second dispatcher skips them. Rows stuck in SENDING past SendingLease
// (crashed or interrupted dispatcher) are claimed again.
func (r *EmailQueueRepository) FetchPending(ctx context.Context, limit int) ([]*entity.QueuedEmail, error) {
	query := `
		UPDATE email_queue
		SET status = 'SENDING', attempts = attempts + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM email_queue
			WHERE status = 'PENDING'
			   OR (status = 'SENDING' AND updated_at < NOW() - make_interval(secs => $2))
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, lead_id, to_email, template_key, subject, lang, payload,
		          dedupe_key, status, attempts, created_at
	`

	rows, err := r.DB.QueryContext(ctx, query, limit, SendingLease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim pending emails: %w", err)
	}
	defer rows.Close()

	var emails []*entity.QueuedEmail
	for rows.Next() {
		var (
			e       entity.QueuedEmail
			payload []byte
		)
		if err := rows.Scan(
			&e.ID, &e.LeadID, &e.To, &e.TemplateKey, &e.Subject, &e.Lang, &payload,
			&e.DedupeKey, &e.Status, &e.Attempts, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of email %d: %w", e.ID, err)
			}
		}
		emails = append(emails, &e)
	}

	return emails, rows.Err()
}

func (r *EmailQueueRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE email_queue
		SET status = 'SENT', sent_at = NOW(), last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.DB.ExecContext(ctx, query, id)
	return err
}

// MarkFailed puts the row back to PENDING until MaxEmailAttempts is reached.
func (r *EmailQueueRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE email_queue
		SET status = CASE WHEN attempts >= $3 THEN 'FAILED' ELSE 'PENDING' END,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.DB.ExecContext(ctx, query, id, reason, MaxEmailAttempts)
	return err
}

func (r *EmailQueueRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE email_queue
		SET status = 'FAILED', last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.DB.ExecContext(ctx, query, id, reason)
	return err
}
