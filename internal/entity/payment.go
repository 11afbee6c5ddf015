package entity

type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "stripe"
	ProviderPayPal PaymentProvider = "paypal"
)

type PaymentOutcome string

const (
	OutcomePending         PaymentOutcome = "pending"
	OutcomeSuccess         PaymentOutcome = "success"
	OutcomeFailure         PaymentOutcome = "failure"
	OutcomeShippingBlocked PaymentOutcome = "shipping_blocked"
)

// ShippingInfo is present only for physical products once a label exists.
type ShippingInfo struct {
	LabelURL       string `json:"label_url,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// PaymentConfirmation lives for one page view; the payments function is the
// system of record for paid status.
type PaymentConfirmation struct {
	Provider    PaymentProvider `json:"provider"`
	ExternalRef string          `json:"external_ref"`
	LeadID      string          `json:"lead_id"`
	Product     string          `json:"product,omitempty"`
	Outcome     PaymentOutcome  `json:"outcome"`
	Code        string          `json:"code,omitempty"`
	Message     string          `json:"message,omitempty"`
	Shipping    *ShippingInfo   `json:"shipping,omitempty"`
}
