package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/dj-funnel/internal/entity"
)

func newMockQueue(t *testing.T) (*EmailQueueRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEmailQueueRepository(db), mock
}

func recoveryEmail() *entity.QueuedEmail {
	return &entity.QueuedEmail{
		LeadID:      "l1",
		To:          "ana@gmail.com",
		TemplateKey: entity.AbandonedCartTemplateKey,
		Subject:     "Tu USB de DJ te está esperando",
		Lang:        "es",
		Payload:     map[string]any{"name": "Ana"},
		DedupeKey:   entity.AbandonedCartDedupeKey("l1"),
	}
}

func TestEnqueue(t *testing.T) {
	repo, mock := newMockQueue(t)
	created := time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO email_queue").
		WithArgs("l1", "ana@gmail.com", "abandoned_cart", sqlmock.AnyArg(), "es",
			[]byte(`{"name":"Ana"}`), "abandoned_cart:l1", EmailStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, created))

	e := recoveryEmail()
	require.NoError(t, repo.Enqueue(context.Background(), e))

	assert.Equal(t, int64(42), e.ID)
	assert.Equal(t, EmailStatusPending, e.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDuplicateDedupeKey(t *testing.T) {
	repo, mock := newMockQueue(t)

	mock.ExpectQuery("INSERT INTO email_queue").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Enqueue(context.Background(), recoveryEmail())
	assert.ErrorIs(t, err, entity.ErrAlreadyQueued)
}

func TestEnqueueOtherError(t *testing.T) {
	repo, mock := newMockQueue(t)

	mock.ExpectQuery("INSERT INTO email_queue").WillReturnError(errors.New("connection reset"))

	err := repo.Enqueue(context.Background(), recoveryEmail())
	require.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrAlreadyQueued)
}

func TestFetchPendingDecodesPayload(t *testing.T) {
	repo, mock := newMockQueue(t)
	created := time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(10, SendingLease.Seconds()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "lead_id", "to_email", "template_key", "subject", "lang", "payload",
			"dedupe_key", "status", "attempts", "created_at",
		}).AddRow(7, "l1", "ana@gmail.com", "abandoned_cart", "subj", "es",
			[]byte(`{"name":"Ana","checkout_url":"https://x"}`), "abandoned_cart:l1", EmailStatusSending, 1, created))

	emails, err := repo.FetchPending(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, int64(7), emails[0].ID)
	assert.Equal(t, "Ana", emails[0].Payload["name"])
	assert.Equal(t, 1, emails[0].Attempts)
}

func TestMarkSentAndFailed(t *testing.T) {
	repo, mock := newMockQueue(t)

	mock.ExpectExec("SET status = 'SENT'").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET status = CASE").WithArgs(int64(8), "smtp timeout", MaxEmailAttempts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSent(context.Background(), 7))
	require.NoError(t, repo.MarkFailed(context.Background(), 8, "smtp timeout"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPendingReclaimsStaleSending(t *testing.T) {
	repo, mock := newMockQueue(t)
	created := time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`status = 'SENDING' AND updated_at < NOW\(\) - make_interval\(secs => \$2\)`).
		WithArgs(5, float64(900)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "lead_id", "to_email", "template_key", "subject", "lang", "payload",
			"dedupe_key", "status", "attempts", "created_at",
		}).AddRow(9, "l2", "bo@gmail.com", "abandoned_cart", "subj", "en",
			nil, "abandoned_cart:l2", EmailStatusSending, 2, created))

	emails, err := repo.FetchPending(context.Background(), 5)

	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, int64(9), emails[0].ID)
	assert.Equal(t, 2, emails[0].Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeadSkipsRetries(t *testing.T) {
	repo, mock := newMockQueue(t)

	mock.ExpectExec("SET status = 'FAILED', last_error = \\$2").
		WithArgs(int64(3), "unknown email template").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkDead(context.Background(), 3, "unknown email template"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
