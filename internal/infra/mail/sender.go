package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/codeGROOVE-dev/retry-go"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/dj-funnel/internal/entity"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		Host:       host,
		Port:       port,
		User:       user,
		Password:   password,
		From:       from,
		dialer:     gomail.NewDialer(host, port, user, password),
		attempts:   3,
		retryDelay: 2 * time.Second,
	}
}

// Send renders the queued email's template in its language and delivers it
// over SMTP. Unknown templates fail without retrying.
func (s *EmailSender) Send(ctx context.Context, e *entity.QueuedEmail) error {
	body, err := Render(e)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/html", body)

	return retry.Do(
		func() error {
			if err := s.dialer.DialAndSend(m); err != nil {
				return fmt.Errorf("send smtp to %s: %w", e.To, err)
			}
			return nil
		},
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.MaxJitter(s.retryDelay/2+time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("🔁 [MAIL] retry %d for email %d: %v", n+1, e.ID, err)
		}),
	)
}

// Render picks <template>_<lang>.html, falling back to English.
func Render(e *entity.QueuedEmail) (string, error) {
	t := templates.Lookup(fmt.Sprintf("%s_%s.html", e.TemplateKey, e.Lang))
	if t == nil {
		t = templates.Lookup(e.TemplateKey + "_en.html")
	}
	if t == nil {
		return "", fmt.Errorf("%w: unknown email template %q", entity.ErrEmailUndeliverable, e.TemplateKey)
	}

	data := AbandonedCartData{
		Name:        payloadString(e.Payload, "name"),
		Product:     payloadString(e.Payload, "product"),
		CheckoutURL: payloadString(e.Payload, "checkout_url"),
	}

	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return body.String(), nil
}

func payloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}
