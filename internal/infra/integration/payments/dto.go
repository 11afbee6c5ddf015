package payments

// Shipping restriction codes returned by the PayPal capture function.
const (
	CodeShippingCountryNotAllowed = "SHIPPING_COUNTRY_NOT_ALLOWED"
	CodeShippingAddressInvalid    = "SHIPPING_ADDRESS_INVALID"
)

type VerifyStripeInput struct {
	LeadID    string
	SessionID string
	Product   string
}

type CapturePayPalInput struct {
	LeadID  string
	OrderID string
	Product string
}

type Shippo struct {
	LabelURL       string `json:"labelUrl,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

type VerifyStripeOutput struct {
	// Paid is nil when the function did not include the flag at all.
	Paid   *bool   `json:"paid"`
	Status string  `json:"status,omitempty"`
	Shippo *Shippo `json:"shippo,omitempty"`
}

type CapturePayPalOutput struct {
	Completed bool    `json:"completed"`
	Code      string  `json:"code,omitempty"`
	Message   string  `json:"message,omitempty"`
	Shippo    *Shippo `json:"shippo,omitempty"`
}

type functionRequest struct {
	Action    string `json:"action"`
	LeadID    string `json:"leadId"`
	SessionID string `json:"sessionId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	Product   string `json:"product,omitempty"`
}
