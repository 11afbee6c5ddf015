package mail

import "time"

// AbandonedCartData feeds the abandoned_cart templates.
type AbandonedCartData struct {
	Name        string
	Product     string
	CheckoutURL string
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	dialer     dialer
	attempts   uint
	retryDelay time.Duration
}
