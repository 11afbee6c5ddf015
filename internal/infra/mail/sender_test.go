package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/dj-funnel/internal/entity"
)

type fakeDialer struct {
	failures int
	sent     []*gomail.Message
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.failures > 0 {
		d.failures--
		return errors.New("421 try again later")
	}
	d.sent = append(d.sent, m...)
	return nil
}

func recovery(lang string) *entity.QueuedEmail {
	return &entity.QueuedEmail{
		ID:          1,
		To:          "ana@gmail.com",
		TemplateKey: entity.AbandonedCartTemplateKey,
		Subject:     "subject",
		Lang:        lang,
		Payload: map[string]any{
			"name":         "Ana",
			"product":      "usb_500",
			"checkout_url": "https://djpool.example/usb?lead_id=l1",
		},
	}
}

func TestRenderPicksLanguage(t *testing.T) {
	es, err := Render(recovery("es"))
	require.NoError(t, err)
	assert.Contains(t, es, "Hola Ana")
	assert.Contains(t, es, "https://djpool.example/usb?lead_id=l1")

	en, err := Render(recovery("en"))
	require.NoError(t, err)
	assert.Contains(t, en, "Hi Ana")
}

func TestRenderFallsBackToEnglish(t *testing.T) {
	body, err := Render(recovery("pt"))
	require.NoError(t, err)
	assert.Contains(t, body, "Complete my order")
}

func TestRenderUnknownTemplate(t *testing.T) {
	e := recovery("en")
	e.TemplateKey = "welcome"
	_, err := Render(e)
	assert.ErrorIs(t, err, entity.ErrEmailUndeliverable)
}

func TestRenderEscapesPayload(t *testing.T) {
	e := recovery("en")
	e.Payload["name"] = "<script>alert(1)</script>"
	body, err := Render(e)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestSendRetriesTransientFailures(t *testing.T) {
	d := &fakeDialer{failures: 1}
	s := NewEmailSender("smtp.example.com", 587, "u", "p", "no-reply@djpool.example")
	s.dialer = d
	s.retryDelay = time.Millisecond

	require.NoError(t, s.Send(context.Background(), recovery("es")))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"ana@gmail.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"no-reply@djpool.example"}, d.sent[0].GetHeader("From"))
}

func TestSendUnknownTemplateSkipsSMTP(t *testing.T) {
	d := &fakeDialer{}
	s := NewEmailSender("smtp.example.com", 587, "u", "p", "no-reply@djpool.example")
	s.dialer = d
	s.retryDelay = time.Millisecond

	e := recovery("en")
	e.TemplateKey = "missing"
	assert.Error(t, s.Send(context.Background(), e))
	assert.Empty(t, d.sent)
}
