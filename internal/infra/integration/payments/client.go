package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	StripeFunction = "stripe-checkout"
	PayPalFunction = "paypal-checkout"
)

// Client calls the payment edge functions. Each call is issued exactly once;
// retrying a capture is the caller's decision, never ours.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) VerifyStripe(ctx context.Context, input VerifyStripeInput) (*VerifyStripeOutput, error) {
	body, status, err := c.call(ctx, StripeFunction, functionRequest{
		Action:    "verify",
		LeadID:    input.LeadID,
		SessionID: input.SessionID,
		Product:   input.Product,
	})
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("stripe verify rejected (status %d): %s", status, truncate(body))
	}

	var out VerifyStripeOutput
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode stripe verify: %w", err)
	}
	return &out, nil
}

// CapturePayPal returns the decoded body even for non-2xx responses when the
// function reported a code, so shipping restrictions reach the caller.
func (c *Client) CapturePayPal(ctx context.Context, input CapturePayPalInput) (*CapturePayPalOutput, error) {
	body, status, err := c.call(ctx, PayPalFunction, functionRequest{
		Action:  "capture",
		LeadID:  input.LeadID,
		OrderID: input.OrderID,
		Product: input.Product,
	})
	if err != nil {
		return nil, err
	}

	var out CapturePayPalOutput
	decodeErr := json.Unmarshal(body, &out)

	if status < 200 || status > 299 {
		if decodeErr == nil && out.Code != "" {
			return &out, nil
		}
		return nil, fmt.Errorf("paypal capture rejected (status %d): %s", status, truncate(body))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode paypal capture: %w", decodeErr)
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, function string, payload functionRequest) ([]byte, int, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal %s request: %w", function, err)
	}

	url := fmt.Sprintf("%s/functions/v1/%s", c.baseURL, function)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s response: %w", function, err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DJFunnel/1.0")
}

func truncate(body []byte) string {
	const limit = 300
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
